package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/invobook/invobook/internal/audit/domain"
	auditrepository "github.com/invobook/invobook/internal/audit/repository"
	auditservice "github.com/invobook/invobook/internal/audit/service"
	"github.com/invobook/invobook/internal/calc"
	"github.com/invobook/invobook/internal/clock"
	"github.com/invobook/invobook/internal/config"
	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	customerrepository "github.com/invobook/invobook/internal/customer/repository"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
	invoiceservice "github.com/invobook/invobook/internal/invoice/service"
	obsmetrics "github.com/invobook/invobook/internal/observability/metrics"
	recurringdomain "github.com/invobook/invobook/internal/recurring/domain"
	recurringservice "github.com/invobook/invobook/internal/recurring/service"
	"github.com/invobook/invobook/internal/tenantctx"
)

type testEnv struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	sched     *Scheduler
	recurring recurringdomain.Service
	custRepo  customerdomain.Repository
	orgID     snowflake.ID
	ctx       context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	obsmetrics.ResetSchedulerMetricsForTest()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&recurringdomain.Template{},
		&recurringdomain.Generation{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceSequence{},
		&customerdomain.Customer{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 11, 10, 6, 0, 0, 0, time.UTC))
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	customerRepo := customerrepository.Provide()

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		AuditSvc:     auditSvc,
		CustomerRepo: customerRepo,
	})
	recurringSvc := recurringservice.NewService(recurringservice.ServiceParam{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		Allocator:    invoiceservice.NewNumberAllocator(billing),
		AuditSvc:     auditSvc,
		CustomerRepo: customerRepo,
	})

	sched, err := New(db, zap.NewNop(), DefaultConfig(), fake, billing,
		invoiceSvc, recurringSvc, customerRepo, nil)
	require.NoError(t, err)

	orgID := node.Generate()
	return &testEnv{
		db:        db,
		node:      node,
		clock:     fake,
		sched:     sched,
		recurring: recurringSvc,
		custRepo:  customerRepo,
		orgID:     orgID,
		ctx:       tenantctx.WithOrgID(context.Background(), int64(orgID)),
	}
}

func (e *testEnv) seedCustomer(t *testing.T) customerdomain.Customer {
	t.Helper()
	customer := customerdomain.Customer{
		ID:    e.node.Generate(),
		OrgID: e.orgID,
		Name:  "Mehta Textiles",
	}
	require.NoError(t, e.db.Create(&customer).Error)
	return customer
}

func (e *testEnv) seedTemplate(t *testing.T, customerID snowflake.ID, start time.Time) recurringdomain.Template {
	t.Helper()
	template, err := e.recurring.CreateTemplate(e.ctx, recurringdomain.CreateTemplateRequest{
		Name:       "Weekly Supplies",
		CustomerID: customerID.String(),
		Items: []recurringdomain.TemplateItem{
			{Name: "Cotton Roll", Quantity: 5, UnitPrice: 2000_00, TaxRate: 18, TaxType: calc.TaxTypeGST},
		},
		Frequency: recurringdomain.FrequencyWeekly,
		Interval:  1,
		StartDate: start,
		AutoSend:  true,
		DueInDays: 7,
	})
	require.NoError(t, err)
	return template
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, DefaultConfig(), nil, nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnce_GeneratesDueInvoices(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	template := env.seedTemplate(t, customer.ID, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC))

	require.NoError(t, env.sched.RunOnce(context.Background()))

	var invoices []invoicedomain.Invoice
	require.NoError(t, env.db.Find(&invoices, "recurring_template_id = ?", template.ID).Error)
	require.Len(t, invoices, 1)
	assert.Equal(t, invoicedomain.StatusSent, invoices[0].Status)

	// A second pass finds nothing due and stays idempotent.
	require.NoError(t, env.sched.RunOnce(context.Background()))
	require.NoError(t, env.db.Find(&invoices, "recurring_template_id = ?", template.ID).Error)
	assert.Len(t, invoices, 1)
}

func TestRunOnce_CatchesUpMissedRuns(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	// Three weekly runs have accumulated while the scheduler was down.
	template := env.seedTemplate(t, customer.ID, time.Date(2025, 10, 25, 0, 0, 0, 0, time.UTC))

	require.NoError(t, env.sched.RunOnce(context.Background()))

	var count int64
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).
		Where("recurring_template_id = ?", template.ID).
		Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestRunOnce_MarksOverdue(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)

	dueAt := env.clock.Now().AddDate(0, 0, -3)
	invoice := invoicedomain.Invoice{
		ID:            env.node.Generate(),
		OrgID:         env.orgID,
		InvoiceNumber: "INV-99001",
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		TotalAmount:   5000_00,
		BalanceAmount: 5000_00,
		Status:        invoicedomain.StatusSent,
		IssuedAt:      env.clock.Now().AddDate(0, 0, -20),
		DueAt:         &dueAt,
	}
	require.NoError(t, env.db.Create(&invoice).Error)

	require.NoError(t, env.sched.RunOnce(context.Background()))

	var reloaded invoicedomain.Invoice
	require.NoError(t, env.db.First(&reloaded, "id = ?", invoice.ID).Error)
	assert.Equal(t, invoicedomain.StatusOverdue, reloaded.Status)
}

func TestRunOnce_ResyncsDriftedBalances(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)

	invoice := invoicedomain.Invoice{
		ID:            env.node.Generate(),
		OrgID:         env.orgID,
		InvoiceNumber: "INV-99002",
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		TotalAmount:   12000_00,
		BalanceAmount: 12000_00,
		Status:        invoicedomain.StatusSent,
		IssuedAt:      env.clock.Now(),
	}
	require.NoError(t, env.db.Create(&invoice).Error)

	// Simulate drift: the aggregate disagrees with the open balances.
	require.NoError(t, env.db.Exec(
		`UPDATE customers SET balance_amount = ? WHERE id = ?`,
		777_00, customer.ID,
	).Error)

	require.NoError(t, env.sched.RunOnce(context.Background()))

	reloaded, err := env.custRepo.FindByID(context.Background(), env.db, env.orgID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12000_00), reloaded.BalanceAmount)
}

func TestRunOnce_RespectsEnabledJobs(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	template := env.seedTemplate(t, customer.ID, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC))

	cfg := DefaultConfig()
	cfg.EnabledJobs = []string{"mark_overdue"}
	env.sched.cfg = cfg.withDefaults()

	require.NoError(t, env.sched.RunOnce(context.Background()))

	var count int64
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).
		Where("recurring_template_id = ?", template.ID).
		Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunOnce_SkipsInactiveAndFutureTemplates(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)

	env.seedTemplate(t, customer.ID, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	paused := env.seedTemplate(t, customer.ID, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.db.Exec(
		`UPDATE recurring_templates SET status = ? WHERE id = ?`,
		recurringdomain.TemplateStatusPaused, paused.ID,
	).Error)

	require.NoError(t, env.sched.RunOnce(context.Background()))

	var count int64
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}
