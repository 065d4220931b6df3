package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/invobook/invobook/internal/audit/domain"
	"github.com/invobook/invobook/internal/auditctx"
	"github.com/invobook/invobook/internal/clock"
	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
	"github.com/invobook/invobook/internal/tenantctx"
	"github.com/invobook/invobook/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	AuditSvc     auditdomain.Service
	CustomerRepo customerdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	invoicerepo  repository.Repository[invoicedomain.Invoice]
	auditSvc     auditdomain.Service
	customerRepo customerdomain.Repository
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		invoicerepo:  repository.ProvideStore[invoicedomain.Invoice](p.DB),
		auditSvc:     p.AuditSvc,
		customerRepo: p.CustomerRepo,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoiceID
	}

	item, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID, OrgID: orgID})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil || item.Deleted {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}

	return *item, nil
}

// AddPayment appends a positive payment to an invoice and recomputes
// its balance and status. The invoice update is transactional; the
// customer ledger sync and the audit entry that follow it are
// best-effort.
func (s *Service) AddPayment(ctx context.Context, req invoicedomain.AddPaymentRequest) (invoicedomain.PaymentResult, error) {
	if req.Amount <= 0 {
		return invoicedomain.PaymentResult{}, invoicedomain.ErrInvalidPaymentAmount
	}
	return s.applyPayment(ctx, req.InvoiceID, paymentMutation{
		delta:  req.Amount,
		method: req.Method,
		note:   req.Note,
		action: auditdomain.ActionPaymentAdded,
	})
}

// SetPayment replaces the invoice's paid amount with an absolute
// value. Only the delta relative to the previous paid amount reaches
// the payment history and the customer ledger.
func (s *Service) SetPayment(ctx context.Context, req invoicedomain.SetPaymentRequest) (invoicedomain.PaymentResult, error) {
	if req.PaidAmount < 0 {
		return invoicedomain.PaymentResult{}, invoicedomain.ErrInvalidPaymentAmount
	}
	return s.applyPayment(ctx, req.InvoiceID, paymentMutation{
		absolute: true,
		setTo:    req.PaidAmount,
		method:   req.Method,
		note:     req.Note,
		action:   auditdomain.ActionPaymentUpdated,
	})
}

type paymentMutation struct {
	absolute bool
	setTo    int64
	delta    int64
	method   string
	note     string
	action   auditdomain.ActionType
}

func (s *Service) applyPayment(ctx context.Context, rawID string, mut paymentMutation) (invoicedomain.PaymentResult, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.PaymentResult{}, err
	}

	invoiceID, err := parseID(rawID)
	if err != nil {
		return invoicedomain.PaymentResult{}, invoicedomain.ErrInvalidInvoiceID
	}

	var (
		updated    invoicedomain.Invoice
		summary    invoicedomain.PaymentSummary
		customerID snowflake.ID
		delta      int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil || invoice.Deleted {
			return invoicedomain.ErrInvoiceNotFound
		}

		delta = mut.delta
		if mut.absolute {
			delta = mut.setTo - invoice.PaidAmount
		}

		prevStatus := invoice.Status
		prevBalance := invoice.BalanceAmount

		now := s.clock.Now()
		newPaid := invoice.PaidAmount + delta
		newBalance := invoice.TotalAmount - newPaid
		newStatus := invoicedomain.DeriveStatus(invoice.TotalAmount, newPaid, prevStatus)

		if delta != 0 {
			if err := s.insertPaymentRecord(ctx, tx, invoicedomain.PaymentRecord{
				ID:         s.genID.Generate(),
				OrgID:      orgID,
				InvoiceID:  invoice.ID,
				Amount:     delta,
				Method:     mut.method,
				Note:       mut.note,
				RecordedBy: recordedBy(ctx),
				PaidAt:     now,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices
			 SET paid_amount = ?, balance_amount = ?, status = ?, updated_at = ?
			 WHERE org_id = ? AND id = ?`,
			newPaid, newBalance, newStatus, now, orgID, invoice.ID,
		).Error; err != nil {
			return err
		}

		invoice.PaidAmount = newPaid
		invoice.BalanceAmount = newBalance
		invoice.Status = newStatus
		invoice.UpdatedAt = now

		updated = *invoice
		customerID = invoice.CustomerID
		summary = invoicedomain.PaymentSummary{
			PaymentApplied:  delta,
			PreviousBalance: prevBalance,
			NewBalance:      newBalance,
			StatusChanged:   prevStatus != newStatus,
			PreviousStatus:  prevStatus,
			NewStatus:       newStatus,
		}
		return nil
	})
	if err != nil {
		return invoicedomain.PaymentResult{}, err
	}

	result := invoicedomain.PaymentResult{Invoice: updated, Summary: summary}
	result.CustomerBalance, result.CustomerSynced = s.syncCustomerBalance(ctx, orgID, customerID, -delta)

	s.auditSvc.LogAction(ctx, auditdomain.Entry{
		InvoiceID: updated.ID,
		Action:    mut.action,
		PaymentDetails: map[string]interface{}{
			"payment_applied":  summary.PaymentApplied,
			"previous_balance": summary.PreviousBalance,
			"new_balance":      summary.NewBalance,
			"previous_status":  string(summary.PreviousStatus),
			"new_status":       string(summary.NewStatus),
			"method":           mut.method,
		},
		Note: mut.note,
	})
	if summary.StatusChanged {
		s.auditSvc.LogAction(ctx, auditdomain.Entry{
			InvoiceID: updated.ID,
			Action:    auditdomain.ActionStatusChanged,
			PaymentDetails: map[string]interface{}{
				"previous_status": string(summary.PreviousStatus),
				"new_status":      string(summary.NewStatus),
			},
		})
	}

	return result, nil
}

// syncCustomerBalance applies a signed delta to the linked customer's
// aggregate. The invoice record is authoritative, so a missing
// customer or a storage error only logs a warning; the nightly resync
// sweep repairs any drift.
func (s *Service) syncCustomerBalance(ctx context.Context, orgID, customerID snowflake.ID, delta int64) (int64, bool) {
	if customerID == 0 {
		return 0, false
	}

	ok, err := s.customerRepo.AdjustBalance(ctx, s.db, orgID, customerID, delta)
	if err != nil {
		s.log.Warn("customer balance sync failed",
			zap.Int64("org_id", int64(orgID)),
			zap.Int64("customer_id", int64(customerID)),
			zap.Error(err))
		return 0, false
	}
	if !ok {
		return 0, false
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, customerID)
	if err != nil || customer == nil {
		return 0, false
	}
	return customer.BalanceAmount, true
}

func (s *Service) GetPaymentHistory(ctx context.Context, rawID string) (invoicedomain.PaymentHistoryResponse, error) {
	invoice, err := s.GetByID(ctx, rawID)
	if err != nil {
		return invoicedomain.PaymentHistoryResponse{}, err
	}

	var history []invoicedomain.PaymentRecord
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ?", invoice.OrgID, invoice.ID).
		Order("paid_at DESC").
		Order("id DESC").
		Find(&history).Error
	if err != nil {
		return invoicedomain.PaymentHistoryResponse{}, err
	}
	if history == nil {
		history = []invoicedomain.PaymentRecord{}
	}

	return invoicedomain.PaymentHistoryResponse{
		InvoiceNumber: invoice.InvoiceNumber,
		TotalAmount:   invoice.TotalAmount,
		PaidAmount:    invoice.PaidAmount,
		BalanceAmount: invoice.BalanceAmount,
		Status:        invoice.Status,
		History:       history,
	}, nil
}

// SoftDelete hides an invoice from every read and report path while
// keeping the row recoverable. The customer's aggregate balance drops
// the invoice's open balance.
func (s *Service) SoftDelete(ctx context.Context, rawID string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	invoiceID, err := parseID(rawID)
	if err != nil {
		return invoicedomain.ErrInvalidInvoiceID
	}

	var (
		customerID  snowflake.ID
		openBalance int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil || invoice.Deleted {
			return invoicedomain.ErrInvoiceNotFound
		}

		now := s.clock.Now()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices
			 SET deleted = ?, deleted_at = ?, updated_at = ?
			 WHERE org_id = ? AND id = ?`,
			true, now, now, orgID, invoice.ID,
		).Error; err != nil {
			return err
		}

		customerID = invoice.CustomerID
		if isOpenStatus(invoice.Status) {
			openBalance = invoice.BalanceAmount
		}
		return nil
	})
	if err != nil {
		return err
	}

	if openBalance != 0 {
		s.syncCustomerBalance(ctx, orgID, customerID, -openBalance)
	}
	s.auditSvc.LogAction(ctx, auditdomain.Entry{
		InvoiceID: invoiceID,
		Action:    auditdomain.ActionDeleted,
	})
	return nil
}

// Recover reverses a soft delete and restores the invoice's open
// balance to the customer aggregate.
func (s *Service) Recover(ctx context.Context, rawID string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	invoiceID, err := parseID(rawID)
	if err != nil {
		return invoicedomain.ErrInvalidInvoiceID
	}

	var (
		customerID  snowflake.ID
		openBalance int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil || !invoice.Deleted {
			return invoicedomain.ErrInvoiceNotFound
		}

		now := s.clock.Now()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices
			 SET deleted = ?, deleted_at = NULL, updated_at = ?
			 WHERE org_id = ? AND id = ?`,
			false, now, orgID, invoice.ID,
		).Error; err != nil {
			return err
		}

		customerID = invoice.CustomerID
		if isOpenStatus(invoice.Status) {
			openBalance = invoice.BalanceAmount
		}
		return nil
	})
	if err != nil {
		return err
	}

	if openBalance != 0 {
		s.syncCustomerBalance(ctx, orgID, customerID, openBalance)
	}
	s.auditSvc.LogAction(ctx, auditdomain.Entry{
		InvoiceID: invoiceID,
		Action:    auditdomain.ActionRecovered,
	})
	return nil
}

// Share mints a public share token for the invoice. Repeated calls
// rotate the token.
func (s *Service) Share(ctx context.Context, rawID string) (string, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	invoiceID, err := parseID(rawID)
	if err != nil {
		return "", invoicedomain.ErrInvalidInvoiceID
	}

	token := strings.ToLower(ulid.Make().String())
	now := s.clock.Now()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET share_token = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted = ?`,
		token, now, orgID, invoiceID, false,
	)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", invoicedomain.ErrInvoiceNotFound
	}

	s.auditSvc.LogAction(ctx, auditdomain.Entry{
		InvoiceID: invoiceID,
		Action:    auditdomain.ActionShared,
	})
	return token, nil
}

// MarkOverdue flips open sent/partial invoices whose due date plus the
// grace period has passed. It runs across all tenants and is meant for
// the scheduler.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time, graceDays int) (int64, error) {
	cutoff := asOf.AddDate(0, 0, -graceDays)

	type overdueRow struct {
		ID    snowflake.ID
		OrgID snowflake.ID
	}
	var rows []overdueRow
	var flipped int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Raw(
			`SELECT id, org_id
			 FROM invoices
			 WHERE deleted = ? AND status IN (?, ?) AND due_at IS NOT NULL AND due_at < ?`+rowLockClause(tx),
			false, invoicedomain.StatusSent, invoicedomain.StatusPartial, cutoff,
		).Scan(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		result := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, updated_at = ? WHERE id IN ?`,
			invoicedomain.StatusOverdue, s.clock.Now(), ids,
		)
		if result.Error != nil {
			return result.Error
		}
		flipped = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		s.auditSvc.LogAction(tenantctx.WithOrgID(ctx, int64(row.OrgID)), auditdomain.Entry{
			InvoiceID: row.ID,
			Action:    auditdomain.ActionStatusChanged,
			PaymentDetails: map[string]interface{}{
				"new_status": string(invoicedomain.StatusOverdue),
			},
		})
	}
	return flipped, nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := tenantctx.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, invoicedomain.ErrInvalidOrganization
	}
	return orgID, nil
}

func (s *Service) loadInvoiceForUpdate(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT *
		 FROM invoices
		 WHERE org_id = ? AND id = ?`+rowLockClause(tx),
		orgID, id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (s *Service) insertPaymentRecord(ctx context.Context, tx *gorm.DB, rec invoicedomain.PaymentRecord) error {
	return tx.WithContext(ctx).Create(&rec).Error
}

func isOpenStatus(status invoicedomain.Status) bool {
	for _, open := range invoicedomain.OpenStatuses() {
		if status == open {
			return true
		}
	}
	return false
}

func recordedBy(ctx context.Context) string {
	_, actorID := auditctx.ActorFromContext(ctx)
	return actorID
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
