package service

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
	recurringdomain "github.com/invobook/invobook/internal/recurring/domain"
	"github.com/invobook/invobook/internal/tenantctx"
)

type testEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      *Service
	custRepo customerdomain.Repository
	orgID    snowflake.ID
	ctx      context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

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

	fake := clock.NewFakeClock(time.Date(2025, 11, 10, 8, 0, 0, 0, time.UTC))
	customerRepo := customerrepository.Provide()

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	allocator := invoiceservice.NewNumberAllocator(
		config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()))

	svcInterface := NewService(ServiceParam{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		Allocator:    allocator,
		AuditSvc:     auditSvc,
		CustomerRepo: customerRepo,
	})

	orgID := node.Generate()
	return &testEnv{
		db:       db,
		node:     node,
		clock:    fake,
		svc:      svcInterface.(*Service),
		custRepo: customerRepo,
		orgID:    orgID,
		ctx:      tenantctx.WithOrgID(context.Background(), int64(orgID)),
	}
}

func (e *testEnv) seedCustomer(t *testing.T) customerdomain.Customer {
	t.Helper()
	customer := customerdomain.Customer{
		ID:    e.node.Generate(),
		OrgID: e.orgID,
		Name:  "Gupta Hardware",
		Phone: "9876543210",
	}
	require.NoError(t, e.db.Create(&customer).Error)
	return customer
}

func monthlyTemplateRequest(customerID string, start time.Time) recurringdomain.CreateTemplateRequest {
	cost := int64(3800_00)
	return recurringdomain.CreateTemplateRequest{
		Name:       "Monthly Maintenance",
		CustomerID: customerID,
		Items: []recurringdomain.TemplateItem{
			{
				Name:      "AMC Service",
				Quantity:  10,
				UnitPrice: 4500_00,
				UnitCost:  &cost,
				TaxRate:   18,
				TaxType:   calc.TaxTypeGST,
			},
		},
		DiscountValue: 1000_00,
		DiscountType:  "fixed",
		Frequency:     recurringdomain.FrequencyMonthly,
		Interval:      1,
		StartDate:     start,
		AutoSend:      true,
		DueInDays:     15,
	}
}

func TestCreateTemplate(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	template, err := env.svc.CreateTemplate(env.ctx, monthlyTemplateRequest(customer.ID.String(), start))
	require.NoError(t, err)

	assert.Equal(t, "monthly-maintenance", template.Code)
	assert.Equal(t, recurringdomain.TemplateStatusActive, template.Status)
	assert.Equal(t, start, template.NextRunDate)
	assert.Equal(t, customer.Name, template.CustomerName)
	assert.Equal(t, customer.Phone, template.CustomerPhone)
	assert.Equal(t, 1, template.Interval)
}

func TestCreateTemplate_Validation(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	req := monthlyTemplateRequest(customer.ID.String(), start)
	req.Name = "  "
	_, err := env.svc.CreateTemplate(env.ctx, req)
	assert.ErrorIs(t, err, recurringdomain.ErrInvalidTemplate)

	req = monthlyTemplateRequest(customer.ID.String(), start)
	req.Items = nil
	_, err = env.svc.CreateTemplate(env.ctx, req)
	assert.ErrorIs(t, err, recurringdomain.ErrInvalidTemplate)

	req = monthlyTemplateRequest(customer.ID.String(), start)
	req.Frequency = "fortnightly"
	_, err = env.svc.CreateTemplate(env.ctx, req)
	assert.ErrorIs(t, err, recurringdomain.ErrInvalidTemplate)

	req = monthlyTemplateRequest(env.node.Generate().String(), start)
	_, err = env.svc.CreateTemplate(env.ctx, req)
	assert.ErrorIs(t, err, customerdomain.ErrNotFound)
}

func TestGenerateDueInvoice(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	template, err := env.svc.CreateTemplate(env.ctx, monthlyTemplateRequest(customer.ID.String(), start))
	require.NoError(t, err)

	result, err := env.svc.GenerateDueInvoice(env.ctx, template.ID.String())
	require.NoError(t, err)
	assert.False(t, result.Reused)

	invoice := result.Invoice
	assert.Equal(t, "INV-00001", invoice.InvoiceNumber)
	assert.Equal(t, invoicedomain.StatusSent, invoice.Status)
	assert.Equal(t, int64(45000_00), invoice.SubtotalAmount)
	assert.Equal(t, int64(4050_00), invoice.CgstAmount)
	assert.Equal(t, int64(4050_00), invoice.SgstAmount)
	assert.Equal(t, int64(1000_00), invoice.DiscountAmount)
	assert.Equal(t, int64(52100_00), invoice.TotalAmount)
	assert.Equal(t, int64(52100_00), invoice.BalanceAmount)
	assert.Equal(t, int64(7000_00), invoice.ProfitAmount)
	assert.True(t, invoice.IsRecurring)
	require.NotNil(t, invoice.RecurringTemplateID)
	assert.Equal(t, template.ID, *invoice.RecurringTemplateID)
	require.NotNil(t, invoice.DueAt)
	assert.Equal(t, env.clock.Now().AddDate(0, 0, 15), *invoice.DueAt)

	// Monthly advance is a fixed 30 day stride.
	assert.Equal(t, start.AddDate(0, 0, 30), result.NextRunDate)

	var items []invoicedomain.InvoiceItem
	require.NoError(t, env.db.Find(&items, "invoice_id = ?", invoice.ID).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "AMC Service", items[0].Name)

	reloaded, err := env.svc.GetTemplate(env.ctx, template.ID.String())
	require.NoError(t, err)
	assert.True(t, reloaded.NextRunDate.Equal(result.NextRunDate))
	require.NotNil(t, reloaded.LastRunDate)
	assert.Equal(t, int64(1), reloaded.TotalGenerated)

	balance, err := env.custRepo.FindByID(context.Background(), env.db, env.orgID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(52100_00), balance.BalanceAmount)
}

func TestGenerateDueInvoice_DraftWithoutAutoSend(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	req := monthlyTemplateRequest(customer.ID.String(), start)
	req.AutoSend = false
	req.DueInDays = 0
	template, err := env.svc.CreateTemplate(env.ctx, req)
	require.NoError(t, err)

	result, err := env.svc.GenerateDueInvoice(env.ctx, template.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusDraft, result.Invoice.Status)
	assert.Nil(t, result.Invoice.DueAt)
}

func TestGenerateDueInvoice_RetryReturnsExistingInvoice(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	template, err := env.svc.CreateTemplate(env.ctx, monthlyTemplateRequest(customer.ID.String(), start))
	require.NoError(t, err)

	first, err := env.svc.GenerateDueInvoice(env.ctx, template.ID.String())
	require.NoError(t, err)

	// A retry that never saw the advanced run date lands on the same
	// run date and must reuse the committed invoice.
	require.NoError(t, env.db.Exec(
		`UPDATE recurring_templates SET next_run_date = ? WHERE id = ?`,
		start, template.ID,
	).Error)

	second, err := env.svc.GenerateDueInvoice(env.ctx, template.ID.String())
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)

	var count int64
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).
		Where("recurring_template_id = ?", template.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	balance, err := env.custRepo.FindByID(context.Background(), env.db, env.orgID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Invoice.TotalAmount, balance.BalanceAmount)
}

func TestGenerateDueInvoice_NotYetDue(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	template, err := env.svc.CreateTemplate(env.ctx, monthlyTemplateRequest(customer.ID.String(), start))
	require.NoError(t, err)

	_, err = env.svc.GenerateDueInvoice(env.ctx, template.ID.String())
	var notYetDue *recurringdomain.NotYetDueError
	require.ErrorAs(t, err, &notYetDue)
	assert.True(t, notYetDue.DueAt.Equal(start))
}

func TestGenerateDueInvoice_ExpiredTemplateCompletes(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	req := monthlyTemplateRequest(customer.ID.String(), start)
	req.EndDate = &end
	template, err := env.svc.CreateTemplate(env.ctx, req)
	require.NoError(t, err)

	_, err = env.svc.GenerateDueInvoice(env.ctx, template.ID.String())
	assert.ErrorIs(t, err, recurringdomain.ErrTemplateExpired)

	// The completed status commits even though the call errors.
	reloaded, err := env.svc.GetTemplate(env.ctx, template.ID.String())
	require.NoError(t, err)
	assert.Equal(t, recurringdomain.TemplateStatusCompleted, reloaded.Status)

	var count int64
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateDueInvoice_InactiveTemplate(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	template, err := env.svc.CreateTemplate(env.ctx, monthlyTemplateRequest(customer.ID.String(), start))
	require.NoError(t, err)

	require.NoError(t, env.db.Exec(
		`UPDATE recurring_templates SET status = ? WHERE id = ?`,
		recurringdomain.TemplateStatusPaused, template.ID,
	).Error)

	_, err = env.svc.GenerateDueInvoice(env.ctx, template.ID.String())
	assert.ErrorIs(t, err, recurringdomain.ErrTemplateNotActive)
}

func TestGenerateDueInvoice_OtherTenantNotFound(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	template, err := env.svc.CreateTemplate(env.ctx, monthlyTemplateRequest(customer.ID.String(), start))
	require.NoError(t, err)

	otherCtx := tenantctx.WithOrgID(context.Background(), int64(env.node.Generate()))
	_, err = env.svc.GenerateDueInvoice(otherCtx, template.ID.String())
	assert.ErrorIs(t, err, recurringdomain.ErrTemplateNotFound)
}

func TestListDue(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer(t)

	due, err := env.svc.CreateTemplate(env.ctx,
		monthlyTemplateRequest(customer.ID.String(), time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = env.svc.CreateTemplate(env.ctx,
		monthlyTemplateRequest(customer.ID.String(), time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	paused, err := env.svc.CreateTemplate(env.ctx,
		monthlyTemplateRequest(customer.ID.String(), time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.NoError(t, env.db.Exec(
		`UPDATE recurring_templates SET status = ? WHERE id = ?`,
		recurringdomain.TemplateStatusPaused, paused.ID,
	).Error)

	listed, err := env.svc.ListDue(env.ctx, env.clock.Now(), 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(due.ID), listed[0].ID)
	assert.Equal(t, int64(env.orgID), listed[0].OrgID)
}
