package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidInvoiceID    = errors.New("invalid_invoice_id")
)

// Entry is a single audit event to record. Actor and request metadata
// are resolved from the context when left empty.
type Entry struct {
	InvoiceID      snowflake.ID
	Action         ActionType
	PaymentDetails map[string]interface{}
	Note           string
}

// ListRequest filters the audit trail. Entries are always returned
// newest first.
type ListRequest struct {
	InvoiceID snowflake.ID
	Action    ActionType
	From      *time.Time
	To        *time.Time
	Limit     int
}

// ListResponse is a page of audit entries.
type ListResponse struct {
	Entries []AuditLog `json:"entries"`
	Total   int64      `json:"total"`
}

// Service records and queries the audit trail. LogAction is
// best-effort: failures are logged and swallowed so that audit
// problems never fail the financial operation that triggered them.
type Service interface {
	LogAction(ctx context.Context, entry Entry)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}
