package service

import "gorm.io/gorm"

// rowLockClause returns the locking suffix for SELECT statements that
// guard read-modify-write cycles. sqlite has no row locks and already
// serializes writers, so the clause is omitted there.
func rowLockClause(tx *gorm.DB) string {
	if tx.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
