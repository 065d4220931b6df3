package domain

// Status represents invoice lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusConverted Status = "converted"
)

// OpenStatuses are the states in which an invoice still counts toward
// a customer's outstanding balance.
func OpenStatuses() []Status {
	return []Status{StatusPartial, StatusSent, StatusDraft, StatusOverdue}
}

// preservedAtZeroPaid lists the states a zero-paid recompute keeps
// instead of resetting to sent. partial and paid are deliberately
// absent: dropping paidAmount back to zero moves those to sent.
var preservedAtZeroPaid = map[Status]bool{
	StatusDraft:     true,
	StatusSent:      true,
	StatusCancelled: true,
	StatusOverdue:   true,
	StatusAccepted:  true,
	StatusRejected:  true,
	StatusConverted: true,
}

// DeriveStatus maps payment progress onto an invoice status. Payment
// driven transitions only ever move a record toward partial/paid; an
// administrative state (cancelled, accepted, rejected, converted) is
// preserved while nothing has been paid.
func DeriveStatus(total, paid int64, prior Status) Status {
	switch {
	case paid >= total && (total > 0 || paid > 0):
		return StatusPaid
	case paid > 0 && paid < total:
		return StatusPartial
	case paid == 0:
		if preservedAtZeroPaid[prior] {
			return prior
		}
		return StatusSent
	default:
		return prior
	}
}
