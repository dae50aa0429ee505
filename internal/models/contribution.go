package models

import "time"

// Contribution statuses
const (
	ContributionCompleted = "completed"
	ContributionPending   = "pending"
	ContributionFailed    = "failed"
)

// Contribution represents a recorded member payment into the group pool.
// Contributions are append-only; corrections are made with compensating
// entries, never by mutating an existing row.
type Contribution struct {
	ID           string    `json:"id"`
	MembershipID string    `json:"membership_id"`
	GroupID      string    `json:"group_id"`
	Amount       float64   `json:"amount"`
	PaidAt       time.Time `json:"paid_at"`
	Status       string    `json:"status"`
	Method       string    `json:"method"` // e.g. "cash", "mpesa", "bank_transfer"
	Notes        string    `json:"notes,omitempty"`
	RecordedBy   string    `json:"recorded_by"`
	CreatedAt    time.Time `json:"created_at"`
}
