package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/invobook/invobook/internal/config"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
	"github.com/invobook/invobook/pkg/db"
)

type sequenceAllocator struct {
	billing *config.BillingConfigHolder
}

// NewNumberAllocator builds the per-tenant invoice number allocator.
// Numbers come from the invoice_sequences counter row, locked and
// incremented inside the caller's transaction so a number is consumed
// exactly once per committed invoice.
func NewNumberAllocator(billing *config.BillingConfigHolder) invoicedomain.NumberAllocator {
	return &sequenceAllocator{billing: billing}
}

func (a *sequenceAllocator) NextInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error) {
	seq, err := a.loadSequenceForUpdate(ctx, tx, orgID)
	if err != nil {
		return "", err
	}
	if seq == nil {
		if err := a.insertSequence(ctx, tx, orgID); err != nil {
			return "", err
		}
		if seq, err = a.loadSequenceForUpdate(ctx, tx, orgID); err != nil {
			return "", err
		}
		if seq == nil {
			return "", gorm.ErrRecordNotFound
		}
	}

	number := seq.NextNumber
	if err := tx.WithContext(ctx).Exec(
		`UPDATE invoice_sequences
		 SET next_number = next_number + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ?`,
		orgID,
	).Error; err != nil {
		return "", err
	}

	pad := a.billing.Get().InvoiceNumberPad
	return fmt.Sprintf("INV-%0*d", pad, number), nil
}

func (a *sequenceAllocator) loadSequenceForUpdate(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*invoicedomain.InvoiceSequence, error) {
	var seq invoicedomain.InvoiceSequence
	err := tx.WithContext(ctx).Raw(
		`SELECT org_id, next_number, updated_at
		 FROM invoice_sequences
		 WHERE org_id = ?`+rowLockClause(tx),
		orgID,
	).Scan(&seq).Error
	if err != nil {
		return nil, err
	}
	if seq.OrgID == 0 {
		return nil, nil
	}
	return &seq, nil
}

func (a *sequenceAllocator) insertSequence(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO invoice_sequences (org_id, next_number, updated_at)
		 VALUES (?, 1, CURRENT_TIMESTAMP)
		 ON CONFLICT (org_id) DO NOTHING`,
		orgID,
	).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}
