package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	invoicedomain "github.com/invobook/invobook/internal/invoice/domain"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidTemplateID   = errors.New("invalid_template_id")
	ErrTemplateNotFound    = errors.New("template_not_found")
	ErrTemplateNotActive   = errors.New("template_not_active")
	ErrTemplateExpired     = errors.New("template_expired")
	ErrInvalidTemplate     = errors.New("invalid_template")
)

// NotYetDueError rejects a generation attempted before the template's
// next run date. It carries the due date so the caller can tell the
// user when to come back.
type NotYetDueError struct {
	DueAt time.Time
}

func (e *NotYetDueError) Error() string {
	return fmt.Sprintf("template_not_yet_due: due at %s", e.DueAt.Format(time.RFC3339))
}

// CreateTemplateRequest defines a new recurring template. Items is the
// line definition the calculator re-evaluates at every generation.
type CreateTemplateRequest struct {
	Name          string
	CustomerID    string
	Items         []TemplateItem
	DiscountValue float64
	DiscountType  string
	Frequency     Frequency
	Interval      int
	StartDate     time.Time
	EndDate       *time.Time
	AutoSend      bool
	DueInDays     int
}

// DueTemplate identifies a template the scheduler should generate for.
type DueTemplate struct {
	ID    int64 `json:"id"`
	OrgID int64 `json:"org_id"`
}

// GenerateResult is the outcome of a successful generation.
type GenerateResult struct {
	Invoice     invoicedomain.Invoice `json:"invoice"`
	NextRunDate time.Time             `json:"next_run_date"`
	Reused      bool                  `json:"reused"`
}

// Service manages recurring templates and turns due templates into
// invoices.
type Service interface {
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (Template, error)
	GetTemplate(ctx context.Context, id string) (Template, error)
	// GenerateDueInvoice produces the invoice for the template's current
	// due date. Safe to retry: a repeat call for the same due date
	// returns the already generated invoice.
	GenerateDueInvoice(ctx context.Context, templateID string) (GenerateResult, error)
	// ListDue returns active templates whose next run date is at or
	// before asOf, for the scheduler to work through.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]DueTemplate, error)
}
