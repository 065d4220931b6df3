// Package domain contains persistence models for recurring invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	"github.com/invobook/invobook/internal/calc"
)

// Frequency is the recurrence cadence of a template.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// daysPer maps a frequency to its fixed day count. Monthly, quarterly
// and yearly deliberately use 30/90/365-day approximations rather than
// calendar arithmetic.
var daysPer = map[Frequency]int{
	FrequencyDaily:     1,
	FrequencyWeekly:    7,
	FrequencyMonthly:   30,
	FrequencyQuarterly: 90,
	FrequencyYearly:    365,
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	_, ok := daysPer[f]
	return ok
}

// Advance returns the run date that follows from, by interval units of
// the frequency. Pure date arithmetic, no calendar-month handling.
func Advance(from time.Time, freq Frequency, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	days := daysPer[freq]
	if days == 0 {
		days = 30
	}
	return from.AddDate(0, 0, days*interval)
}

// TemplateStatus is the lifecycle state of a recurring template.
type TemplateStatus string

const (
	TemplateStatusActive    TemplateStatus = "active"
	TemplateStatusPaused    TemplateStatus = "paused"
	TemplateStatusCompleted TemplateStatus = "completed"
	TemplateStatusCancelled TemplateStatus = "cancelled"
)

// TemplateItem is one line of a template's item definition, stored as
// JSON on the template row. Prices are re-evaluated from these values
// at every generation.
type TemplateItem struct {
	Name      string       `json:"name"`
	Quantity  float64      `json:"quantity"`
	UnitPrice int64        `json:"unit_price"`
	UnitCost  *int64       `json:"unit_cost,omitempty"`
	TaxRate   float64      `json:"tax_rate"`
	TaxType   calc.TaxType `json:"tax_type"`
}

// Template is a recurring invoice definition.
type Template struct {
	ID    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID snowflake.ID `gorm:"not null;index" json:"org_id"`

	Name string `gorm:"type:text;not null" json:"name"`
	Code string `gorm:"type:text;not null" json:"code"`

	CustomerID      snowflake.ID `gorm:"not null;index" json:"customer_id"`
	CustomerName    string       `gorm:"type:text;not null" json:"customer_name"`
	CustomerPhone   string       `gorm:"type:text" json:"customer_phone,omitempty"`
	CustomerEmail   string       `gorm:"type:text" json:"customer_email,omitempty"`
	CustomerAddress string       `gorm:"type:text" json:"customer_address,omitempty"`
	CustomerTaxID   string       `gorm:"type:text" json:"customer_tax_id,omitempty"`

	Items datatypes.JSON `gorm:"type:jsonb;not null" json:"items"`

	DiscountValue float64           `gorm:"not null;default:0" json:"discount_value"`
	DiscountType  calc.DiscountType `gorm:"type:text;not null;default:'fixed'" json:"discount_type"`

	Frequency Frequency `gorm:"type:text;not null" json:"frequency"`
	Interval  int       `gorm:"not null;default:1" json:"interval"`

	StartDate   time.Time  `gorm:"not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	NextRunDate time.Time  `gorm:"not null;index" json:"next_run_date"`
	LastRunDate *time.Time `json:"last_run_date,omitempty"`

	AutoSend  bool `gorm:"not null;default:false" json:"auto_send"`
	DueInDays int  `gorm:"not null;default:0" json:"due_in_days"`

	Status         TemplateStatus `gorm:"type:text;not null;default:'active';index" json:"status"`
	TotalGenerated int64          `gorm:"not null;default:0" json:"total_generated"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Template) TableName() string { return "recurring_templates" }

// Generation is the idempotency ledger of invoices produced from a
// template: at most one row per template per run date.
type Generation struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	TemplateID snowflake.ID `gorm:"not null;uniqueIndex:ux_recurring_generations_template_run" json:"template_id"`
	InvoiceID  snowflake.ID `gorm:"not null" json:"invoice_id"`
	RunDate    time.Time    `gorm:"not null;uniqueIndex:ux_recurring_generations_template_run" json:"run_date"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Generation) TableName() string { return "recurring_generations" }
