package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Customer carries the live customer record plus an aggregate
// BalanceAmount: the sum of outstanding balances across the customer's
// open invoices. The aggregate is maintained by equal-and-opposite
// deltas from invoice mutations and re-derived by the resync sweep, so
// temporary drift self-heals.
type Customer struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID      `gorm:"not null;index" json:"org_id"`
	Name          string            `gorm:"not null" json:"name"`
	Phone         string            `gorm:"type:text" json:"phone,omitempty"`
	Email         string            `gorm:"type:text" json:"email,omitempty"`
	Address       string            `gorm:"type:text" json:"address,omitempty"`
	TaxID         string            `gorm:"type:text" json:"tax_id,omitempty"`
	BalanceAmount int64             `gorm:"not null;default:0" json:"balance_amount"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }
