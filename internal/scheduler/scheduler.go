// Package scheduler runs the periodic billing jobs: recurring invoice
// generation, the overdue sweep and customer balance resync.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/invobook/invobook/internal/audit/domain"
	"github.com/invobook/invobook/internal/auditctx"
	"github.com/invobook/invobook/internal/clock"
	"github.com/invobook/invobook/internal/config"
	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
	obsmetrics "github.com/invobook/invobook/internal/observability/metrics"
	recurringdomain "github.com/invobook/invobook/internal/recurring/domain"
	"github.com/invobook/invobook/internal/tenantctx"
)

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   Config
	clock clock.Clock

	billing      *config.BillingConfigHolder
	invoiceSvc   invoicedomain.Service
	recurringSvc recurringdomain.Service
	customerRepo customerdomain.Repository
	locker       *Locker
}

func New(
	db *gorm.DB,
	log *zap.Logger,
	cfg Config,
	clk clock.Clock,
	billing *config.BillingConfigHolder,
	invoiceSvc invoicedomain.Service,
	recurringSvc recurringdomain.Service,
	customerRepo customerdomain.Repository,
	locker *Locker,
) (*Scheduler, error) {
	if db == nil || log == nil || clk == nil || billing == nil || invoiceSvc == nil || recurringSvc == nil || customerRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:    db,
		log:   log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:   cfg.withDefaults(),
		clock: clk,

		billing:      billing,
		invoiceSvc:   invoiceSvc,
		recurringSvc: recurringSvc,
		customerRepo: customerRepo,
		locker:       locker,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) (int64, error)
	}{
		{"generate_recurring", s.GenerateRecurringJob},
		{"mark_overdue", s.MarkOverdueJob},
		{"resync_customer_balances", s.ResyncCustomerBalancesJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) (int64, error)) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx = auditctx.WithActor(ctx, auditdomain.ActorTypeSystem, "scheduler")
	schedMetrics := obsmetrics.Scheduler()

	if s.locker != nil {
		key := "invobook:scheduler:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			schedMetrics.IncJobError(name)
			return fmt.Errorf("%s: %w", name, err)
		}
		if !ok {
			schedMetrics.IncJobSkipped(name)
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("lock release failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	schedMetrics.IncJobRun(name)
	processed, err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	schedMetrics.AddBatchProcessed(name, processed)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err))
		return nil
	}

	schedMetrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// GenerateRecurringJob works through templates whose run date has
// arrived. A generation failure on one template does not stop the
// rest of the batch.
func (s *Scheduler) GenerateRecurringJob(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	batchSize := s.billing.Get().RecurringBatchSize

	var (
		processed int64
		jobErr    error
	)
	for {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		due, err := s.recurringSvc.ListDue(ctx, now, batchSize)
		if err != nil {
			return processed, err
		}
		if len(due) == 0 {
			break
		}

		var generated int64
		for _, template := range due {
			tctx := tenantctx.WithOrgID(ctx, template.OrgID)
			result, err := s.recurringSvc.GenerateDueInvoice(tctx, fmt.Sprintf("%d", template.ID))
			if err != nil {
				var notYetDue *recurringdomain.NotYetDueError
				if errors.As(err, &notYetDue) || errors.Is(err, recurringdomain.ErrTemplateExpired) ||
					errors.Is(err, recurringdomain.ErrTemplateNotActive) {
					continue
				}
				jobErr = errors.Join(jobErr, err)
				s.log.Warn("recurring generation failed",
					zap.Int64("template_id", template.ID),
					zap.Int64("org_id", template.OrgID),
					zap.Error(err))
				continue
			}
			if !result.Reused {
				generated++
				processed++
			}
		}
		if generated == 0 {
			break
		}
	}
	return processed, jobErr
}

// MarkOverdueJob flips open invoices past their due date plus the
// configured grace period.
func (s *Scheduler) MarkOverdueJob(ctx context.Context) (int64, error) {
	graceDays := s.billing.Get().OverdueGraceDays
	flipped, err := s.invoiceSvc.MarkOverdue(ctx, s.clock.Now(), graceDays)
	if err != nil {
		return 0, err
	}
	if flipped > 0 {
		s.log.Info("marked invoices overdue", zap.Int64("count", flipped))
	}
	return flipped, nil
}

// ResyncCustomerBalancesJob recomputes every customer balance from the
// sum of open invoice balances. This is what makes the best-effort
// incremental deltas self-healing.
func (s *Scheduler) ResyncCustomerBalancesJob(ctx context.Context) (int64, error) {
	var orgIDs []int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT org_id FROM customers`,
	).Scan(&orgIDs).Error; err != nil {
		return 0, err
	}

	var (
		resynced int64
		jobErr   error
	)
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			return resynced, ctx.Err()
		}
		affected, err := s.customerRepo.ResyncBalances(ctx, s.db, snowflake.ID(orgID))
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("balance resync failed", zap.Int64("org_id", orgID), zap.Error(err))
			continue
		}
		resynced += affected
	}
	return resynced, jobErr
}
