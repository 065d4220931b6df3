package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists audit log rows. Inserts only, there is no
// update or delete path.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, req ListRequest, orgID int64) ([]AuditLog, int64, error)
}
