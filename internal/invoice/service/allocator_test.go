package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/invobook/invobook/internal/config"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
)

func newAllocatorDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.InvoiceSequence{}))
	return db
}

func TestNextInvoiceNumber_SequentialPerOrg(t *testing.T) {
	db := newAllocatorDB(t)
	allocator := NewNumberAllocator(config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()))
	ctx := context.Background()

	var first, second string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = allocator.NextInvoiceNumber(ctx, tx, 101)
		return err
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = allocator.NextInvoiceNumber(ctx, tx, 101)
		return err
	}))

	assert.Equal(t, "INV-00001", first)
	assert.Equal(t, "INV-00002", second)
}

func TestNextInvoiceNumber_OrgsAreIndependent(t *testing.T) {
	db := newAllocatorDB(t)
	allocator := NewNumberAllocator(config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			_, err := allocator.NextInvoiceNumber(ctx, tx, 101)
			return err
		}))
	}

	var other string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		other, err = allocator.NextInvoiceNumber(ctx, tx, 202)
		return err
	}))
	assert.Equal(t, "INV-00001", other)
}

func TestNextInvoiceNumber_PadFromConfig(t *testing.T) {
	db := newAllocatorDB(t)
	cfg := config.DefaultBillingConfig()
	cfg.InvoiceNumberPad = 3
	allocator := NewNumberAllocator(config.NewStaticBillingConfigHolder(cfg))

	var number string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = allocator.NextInvoiceNumber(context.Background(), tx, 101)
		return err
	}))
	assert.Equal(t, "INV-001", number)
}

func TestNextInvoiceNumber_RollbackDoesNotConsume(t *testing.T) {
	db := newAllocatorDB(t)
	allocator := NewNumberAllocator(config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()))
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := allocator.NextInvoiceNumber(ctx, tx, 101); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	var number string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = allocator.NextInvoiceNumber(ctx, tx, 101)
		return err
	}))
	assert.Equal(t, "INV-00001", number)
}
