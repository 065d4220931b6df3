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

	"github.com/invobook/invobook/internal/audit/domain"
	"github.com/invobook/invobook/internal/audit/repository"
	"github.com/invobook/invobook/internal/auditctx"
	"github.com/invobook/invobook/internal/clock"
	"github.com/invobook/invobook/internal/tenantctx"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, db, node, fake
}

func TestLogAction_DefaultsToSystemActor(t *testing.T) {
	svc, db, node, _ := newTestService(t)
	orgID := node.Generate()
	invoiceID := node.Generate()
	ctx := tenantctx.WithOrgID(context.Background(), int64(orgID))

	svc.LogAction(ctx, domain.Entry{
		InvoiceID: invoiceID,
		Action:    domain.ActionCreated,
	})

	var entry domain.AuditLog
	require.NoError(t, db.First(&entry, "invoice_id = ?", invoiceID).Error)
	assert.Equal(t, domain.ActorTypeSystem, entry.ActorType)
	assert.Nil(t, entry.ActorID)
}

func TestLogAction_CapturesRequestActor(t *testing.T) {
	svc, db, node, _ := newTestService(t)
	orgID := node.Generate()
	invoiceID := node.Generate()

	ctx := tenantctx.WithOrgID(context.Background(), int64(orgID))
	ctx = auditctx.WithActor(ctx, "user", "u-42")
	ctx = auditctx.WithIPAddress(ctx, "10.0.0.7")
	ctx = auditctx.WithUserAgent(ctx, "curl/8.5")

	svc.LogAction(ctx, domain.Entry{
		InvoiceID:      invoiceID,
		Action:         domain.ActionPaymentAdded,
		PaymentDetails: map[string]interface{}{"payment_applied": int64(500_00)},
		Note:           "counter payment",
	})

	var entry domain.AuditLog
	require.NoError(t, db.First(&entry, "invoice_id = ?", invoiceID).Error)
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "u-42", *entry.ActorID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.7", *entry.IPAddress)
	require.NotNil(t, entry.UserAgent)
	assert.Equal(t, "curl/8.5", *entry.UserAgent)
	assert.Equal(t, "counter payment", entry.Note)
	assert.NotEmpty(t, entry.PaymentDetails)
}

func TestLogAction_DropsEntriesItCannotAttribute(t *testing.T) {
	svc, db, node, _ := newTestService(t)
	orgID := node.Generate()

	// No org in context.
	svc.LogAction(context.Background(), domain.Entry{
		InvoiceID: node.Generate(),
		Action:    domain.ActionCreated,
	})
	// No action.
	svc.LogAction(tenantctx.WithOrgID(context.Background(), int64(orgID)), domain.Entry{
		InvoiceID: node.Generate(),
	})

	var count int64
	require.NoError(t, db.Model(&domain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestList_FiltersAndOrders(t *testing.T) {
	svc, _, node, fake := newTestService(t)
	orgID := node.Generate()
	first := node.Generate()
	second := node.Generate()
	ctx := tenantctx.WithOrgID(context.Background(), int64(orgID))

	svc.LogAction(ctx, domain.Entry{InvoiceID: first, Action: domain.ActionCreated})
	fake.Advance(time.Hour)
	svc.LogAction(ctx, domain.Entry{InvoiceID: first, Action: domain.ActionPaymentAdded})
	fake.Advance(time.Hour)
	svc.LogAction(ctx, domain.Entry{InvoiceID: second, Action: domain.ActionCreated})

	resp, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, second, resp.Entries[0].InvoiceID)

	resp, err = svc.List(ctx, domain.ListRequest{InvoiceID: first})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)

	resp, err = svc.List(ctx, domain.ListRequest{Action: domain.ActionPaymentAdded})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)

	cutoff := fake.Now().Add(-30 * time.Minute)
	resp, err = svc.List(ctx, domain.ListRequest{From: &cutoff})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
}

func TestList_RequiresOrganization(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.List(context.Background(), domain.ListRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestList_ScopedToTenant(t *testing.T) {
	svc, _, node, _ := newTestService(t)
	orgID := node.Generate()
	ctx := tenantctx.WithOrgID(context.Background(), int64(orgID))

	svc.LogAction(ctx, domain.Entry{InvoiceID: node.Generate(), Action: domain.ActionCreated})

	otherCtx := tenantctx.WithOrgID(context.Background(), int64(node.Generate()))
	resp, err := svc.List(otherCtx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Entries)
}
