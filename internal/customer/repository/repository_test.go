package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
)

func newTestDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&customerdomain.Customer{}, &invoicedomain.Invoice{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func TestAdjustBalance(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()
	orgID := node.Generate()

	customer := customerdomain.Customer{ID: node.Generate(), OrgID: orgID, Name: "Patel Stores"}
	require.NoError(t, repo.Insert(ctx, db, &customer))

	ok, err := repo.AdjustBalance(ctx, db, orgID, customer.ID, 5000_00)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AdjustBalance(ctx, db, orgID, customer.ID, -1500_00)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := repo.FindByID(ctx, db, orgID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3500_00), reloaded.BalanceAmount)

	// Unknown customer reports no match instead of erroring.
	ok, err = repo.AdjustBalance(ctx, db, orgID, node.Generate(), 100_00)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindByID_MissingReturnsNil(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()

	customer, err := repo.FindByID(context.Background(), db, node.Generate(), node.Generate())
	require.NoError(t, err)
	assert.Nil(t, customer)
}

func TestResyncBalances(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()
	orgID := node.Generate()

	customer := customerdomain.Customer{
		ID:            node.Generate(),
		OrgID:         orgID,
		Name:          "Patel Stores",
		BalanceAmount: 999_99,
	}
	require.NoError(t, repo.Insert(ctx, db, &customer))

	seed := func(balance int64, status invoicedomain.Status, deleted bool) {
		invoice := invoicedomain.Invoice{
			ID:            node.Generate(),
			OrgID:         orgID,
			InvoiceNumber: "INV-" + node.Generate().String(),
			CustomerID:    customer.ID,
			CustomerName:  customer.Name,
			TotalAmount:   balance,
			BalanceAmount: balance,
			Status:        status,
			Deleted:       deleted,
		}
		require.NoError(t, db.Create(&invoice).Error)
	}
	seed(10000_00, invoicedomain.StatusSent, false)
	seed(4000_00, invoicedomain.StatusPartial, false)
	seed(6000_00, invoicedomain.StatusPaid, false)
	seed(2500_00, invoicedomain.StatusSent, true)

	affected, err := repo.ResyncBalances(ctx, db, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	reloaded, err := repo.FindByID(ctx, db, orgID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(14000_00), reloaded.BalanceAmount)
}

func TestResyncBalances_ScopedToOrg(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	orgA := node.Generate()
	orgB := node.Generate()
	other := customerdomain.Customer{
		ID:            node.Generate(),
		OrgID:         orgB,
		Name:          "Other Org",
		BalanceAmount: 123_00,
	}
	require.NoError(t, repo.Insert(ctx, db, &other))

	_, err := repo.ResyncBalances(ctx, db, orgA)
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, db, orgB, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(123_00), reloaded.BalanceAmount)
}
