package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Customer, error)
	// ListAfter returns up to limit customers with IDs greater than
	// afterID, in ID order. afterID zero starts from the beginning.
	ListAfter(ctx context.Context, db *gorm.DB, orgID, afterID snowflake.ID, limit int) ([]Customer, error)
	// AdjustBalance applies a signed delta to the customer's aggregate
	// balance atomically at the storage layer. Returns false when no
	// matching customer row exists.
	AdjustBalance(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, delta int64) (bool, error)
	// ResyncBalances recomputes every customer balance for the org from
	// the sum of its open invoice balances. Returns affected rows.
	ResyncBalances(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
}
