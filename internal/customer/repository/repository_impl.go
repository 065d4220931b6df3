package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/invobook/invobook/internal/customer/domain"
	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() customerdomain.Repository { return &repo{} }

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *customerdomain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&customer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repo) ListAfter(ctx context.Context, db *gorm.DB, orgID, afterID snowflake.ID, limit int) ([]customerdomain.Customer, error) {
	q := db.WithContext(ctx).Where("org_id = ?", orgID)
	if afterID != 0 {
		q = q.Where("id > ?", afterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var customers []customerdomain.Customer
	if err := q.Order("id ASC").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) AdjustBalance(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, delta int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET balance_amount = balance_amount + ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		delta,
		time.Now().UTC(),
		orgID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ResyncBalances(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	statuses := invoicedomain.OpenStatuses()
	placeholders := make([]string, 0, len(statuses))
	args := make([]any, 0, len(statuses)+2)
	for _, status := range statuses {
		placeholders = append(placeholders, "?")
		args = append(args, string(status))
	}
	args = append(args, time.Now().UTC(), orgID)

	result := db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET balance_amount = (
		 	SELECT COALESCE(SUM(balance_amount), 0)
		 	FROM invoices
		 	WHERE invoices.customer_id = customers.id
		 	  AND invoices.org_id = customers.org_id
		 	  AND invoices.deleted = FALSE
		 	  AND invoices.status IN (`+strings.Join(placeholders, ", ")+`)
		 ), updated_at = ?
		 WHERE org_id = ?`,
		args...,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
