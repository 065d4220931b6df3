// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/invobook/invobook/internal/calc"
	"gorm.io/datatypes"
)

// DocType distinguishes the document kinds an invoice record can carry.
type DocType string

const (
	DocTypeInvoice   DocType = "invoice"
	DocTypeChallan   DocType = "challan"
	DocTypeProforma  DocType = "proforma"
	DocTypeQuotation DocType = "quotation"
	DocTypeEstimate  DocType = "estimate"
)

// Invoice is the authoritative financial record. Aggregate amounts are
// derived through the calculator and the payment path; they are never
// written directly from client input. BalanceAmount is always
// TotalAmount minus PaidAmount.
type Invoice struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;index;uniqueIndex:ux_invoices_org_number" json:"org_id"`
	InvoiceNumber string       `gorm:"type:text;not null;uniqueIndex:ux_invoices_org_number" json:"invoice_number"`
	DocType       DocType      `gorm:"type:text;not null;default:'invoice'" json:"doc_type"`

	CustomerID      snowflake.ID `gorm:"not null;index" json:"customer_id"`
	CustomerName    string       `gorm:"type:text;not null" json:"customer_name"`
	CustomerPhone   string       `gorm:"type:text" json:"customer_phone,omitempty"`
	CustomerEmail   string       `gorm:"type:text" json:"customer_email,omitempty"`
	CustomerAddress string       `gorm:"type:text" json:"customer_address,omitempty"`
	CustomerTaxID   string       `gorm:"type:text" json:"customer_tax_id,omitempty"`

	DiscountValue float64           `gorm:"not null;default:0" json:"discount_value"`
	DiscountType  calc.DiscountType `gorm:"type:text;not null;default:'fixed'" json:"discount_type"`

	SubtotalAmount int64 `gorm:"not null;default:0" json:"subtotal_amount"`
	DiscountAmount int64 `gorm:"not null;default:0" json:"discount_amount"`
	CgstAmount     int64 `gorm:"not null;default:0" json:"cgst_amount"`
	SgstAmount     int64 `gorm:"not null;default:0" json:"sgst_amount"`
	IgstAmount     int64 `gorm:"not null;default:0" json:"igst_amount"`
	TaxAmount      int64 `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount    int64 `gorm:"not null;default:0" json:"total_amount"`
	PaidAmount     int64 `gorm:"not null;default:0" json:"paid_amount"`
	BalanceAmount  int64 `gorm:"not null;default:0" json:"balance_amount"`
	ProfitAmount   int64 `gorm:"not null;default:0" json:"profit_amount"`

	Status Status `gorm:"type:text;not null;default:'draft';index" json:"status"`

	IsRecurring         bool          `gorm:"not null;default:false" json:"is_recurring"`
	RecurringTemplateID *snowflake.ID `gorm:"index" json:"recurring_template_id,omitempty"`

	ShareToken *string           `gorm:"type:text" json:"share_token,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	IssuedAt time.Time  `gorm:"not null" json:"issued_at"`
	DueAt    *time.Time `gorm:"index" json:"due_at,omitempty"`

	Deleted   bool       `gorm:"not null;default:false;index" json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is one line on an invoice, with per-line tax components
// already computed.
type InvoiceItem struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvoiceID snowflake.ID `gorm:"not null;index" json:"invoice_id"`

	Name      string       `gorm:"type:text;not null" json:"name"`
	Quantity  float64      `gorm:"not null" json:"quantity"`
	UnitPrice int64        `gorm:"not null" json:"unit_price"`
	UnitCost  *int64       `json:"unit_cost,omitempty"`
	TaxRate   float64      `gorm:"not null;default:0" json:"tax_rate"`
	TaxType   calc.TaxType `gorm:"type:text;not null;default:'None'" json:"tax_type"`

	SubtotalAmount int64 `gorm:"not null" json:"subtotal_amount"`
	CgstAmount     int64 `gorm:"not null;default:0" json:"cgst_amount"`
	SgstAmount     int64 `gorm:"not null;default:0" json:"sgst_amount"`
	IgstAmount     int64 `gorm:"not null;default:0" json:"igst_amount"`
	TaxAmount      int64 `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount    int64 `gorm:"not null" json:"total_amount"`

	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// PaymentRecord is one entry of an invoice's append-only payment
// history. Rows are only ever inserted; downward adjustments append a
// negative amount.
type PaymentRecord struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvoiceID snowflake.ID `gorm:"not null;index" json:"invoice_id"`

	Amount     int64     `gorm:"not null" json:"amount"`
	Method     string    `gorm:"type:text" json:"method,omitempty"`
	Note       string    `gorm:"type:text" json:"note,omitempty"`
	RecordedBy string    `gorm:"type:text" json:"recorded_by,omitempty"`
	PaidAt     time.Time `gorm:"not null" json:"paid_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PaymentRecord) TableName() string { return "payment_records" }

// InvoiceSequence is the per-org invoice numbering counter. Incremented
// under a row lock inside the generating transaction, exactly once per
// allocated number.
type InvoiceSequence struct {
	OrgID      snowflake.ID `gorm:"primaryKey" json:"org_id"`
	NextNumber int64        `gorm:"not null;default:1" json:"next_number"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }
