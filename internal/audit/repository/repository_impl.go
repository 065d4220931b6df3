package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/invobook/invobook/internal/audit/domain"
)

type repo struct{}

// Provide builds the audit repository.
func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest, orgID int64) ([]domain.AuditLog, int64, error) {
	q := db.WithContext(ctx).Model(&domain.AuditLog{}).Where("org_id = ?", orgID)

	if req.InvoiceID != 0 {
		q = q.Where("invoice_id = ?", req.InvoiceID)
	}
	if req.Action != "" {
		q = q.Where("action = ?", req.Action)
	}
	if req.From != nil {
		q = q.Where("created_at >= ?", *req.From)
	}
	if req.To != nil {
		q = q.Where("created_at < ?", *req.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []domain.AuditLog
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
