package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AddPaymentRequest records an additional payment against an invoice.
// Amount is in minor units and must be positive.
type AddPaymentRequest struct {
	InvoiceID string
	Amount    int64
	Method    string
	Note      string
}

// SetPaymentRequest replaces an invoice's paid amount with an absolute
// value. The customer ledger receives only the delta.
type SetPaymentRequest struct {
	InvoiceID  string
	PaidAmount int64
	Method     string
	Note       string
}

// PaymentSummary describes what a payment mutation changed.
type PaymentSummary struct {
	PaymentApplied  int64  `json:"payment_applied"`
	PreviousBalance int64  `json:"previous_balance"`
	NewBalance      int64  `json:"new_balance"`
	StatusChanged   bool   `json:"status_changed"`
	PreviousStatus  Status `json:"previous_status"`
	NewStatus       Status `json:"new_status"`
}

// PaymentResult is the outcome of AddPayment/SetPayment. The invoice is
// authoritative; CustomerBalance reflects the best-effort ledger sync
// and CustomerSynced reports whether that sync succeeded.
type PaymentResult struct {
	Invoice         Invoice        `json:"invoice"`
	CustomerBalance int64          `json:"customer_balance"`
	CustomerSynced  bool           `json:"customer_synced"`
	Summary         PaymentSummary `json:"summary"`
}

// PaymentHistoryResponse returns an invoice's payment trail newest
// first.
type PaymentHistoryResponse struct {
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   int64           `json:"total_amount"`
	PaidAmount    int64           `json:"paid_amount"`
	BalanceAmount int64           `json:"balance_amount"`
	Status        Status          `json:"status"`
	History       []PaymentRecord `json:"history"`
}

type OutstandingSummaryRequest struct {
	CustomerID *string
}

type OutstandingSummaryResponse struct {
	TotalOutstanding int64     `json:"total_outstanding"`
	TotalInvoices    int       `json:"total_invoices"`
	Invoices         []Invoice `json:"invoices"`
}

type ProfitSummaryRequest struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    *Status
}

type ProfitSummaryResponse struct {
	TotalProfit  int64     `json:"total_profit"`
	TotalRevenue int64     `json:"total_revenue"`
	TotalPaid    int64     `json:"total_paid"`
	ProfitMargin float64   `json:"profit_margin"`
	InvoiceCount int       `json:"invoice_count"`
	Invoices     []Invoice `json:"invoices"`
}

// Service is the payment reconciliation surface over invoices.
type Service interface {
	GetByID(ctx context.Context, id string) (Invoice, error)
	AddPayment(ctx context.Context, req AddPaymentRequest) (PaymentResult, error)
	SetPayment(ctx context.Context, req SetPaymentRequest) (PaymentResult, error)
	GetPaymentHistory(ctx context.Context, invoiceID string) (PaymentHistoryResponse, error)
	GetOutstandingSummary(ctx context.Context, req OutstandingSummaryRequest) (OutstandingSummaryResponse, error)
	GetProfitSummary(ctx context.Context, req ProfitSummaryRequest) (ProfitSummaryResponse, error)
	SoftDelete(ctx context.Context, id string) error
	Recover(ctx context.Context, id string) error
	Share(ctx context.Context, id string) (string, error)
	MarkOverdue(ctx context.Context, asOf time.Time, graceDays int) (int64, error)
}

// NumberAllocator hands out the next sequential invoice number for a
// tenant. Implementations must increment exactly once per call, inside
// the caller's transaction.
type NumberAllocator interface {
	NextInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error)
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidInvoiceID     = errors.New("invalid_invoice_id")
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrInvalidPaymentAmount = errors.New("invalid_payment_amount")
	ErrInvalidDateRange     = errors.New("invalid_date_range")
	ErrInvalidStatus        = errors.New("invalid_status")
)
