package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActionType enumerates auditable financial mutations.
type ActionType string

const (
	ActionCreated        ActionType = "CREATED"
	ActionUpdated        ActionType = "UPDATED"
	ActionPaymentAdded   ActionType = "PAYMENT_ADDED"
	ActionPaymentUpdated ActionType = "PAYMENT_UPDATED"
	ActionStatusChanged  ActionType = "STATUS_CHANGED"
	ActionDeleted        ActionType = "DELETED"
	ActionRecovered      ActionType = "RECOVERED"
	ActionConverted      ActionType = "CONVERTED"
	ActionShared         ActionType = "SHARED"
	ActionPrinted        ActionType = "PRINTED"
)

// ActorTypeSystem marks entries produced by background jobs rather
// than a user request.
const ActorTypeSystem = "system"

// AuditLog is one immutable entry of the financial audit trail. Rows
// are created once and never modified.
type AuditLog struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvoiceID snowflake.ID `gorm:"not null;index" json:"invoice_id"`

	Action    ActionType `gorm:"type:text;not null;index" json:"action"`
	ActorType string     `gorm:"type:text;not null" json:"actor_type"`
	ActorID   *string    `gorm:"type:text" json:"actor_id,omitempty"`

	PaymentDetails datatypes.JSONMap `gorm:"type:jsonb" json:"payment_details,omitempty"`
	Note           string            `gorm:"type:text" json:"note,omitempty"`

	IPAddress *string `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent *string `gorm:"type:text" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
