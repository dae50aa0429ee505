package models

import "time"

// Invitation statuses. Expiry is derived from ExpiresAt at read time and is
// never written to storage by the passage of time alone.
const (
	InvitationPending  = "pending" // self-requested join
	InvitationInvited  = "invited" // admin-initiated
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
)

// Invitation represents a token-addressed membership request. The token is
// consumed exactly once, on acceptance.
type Invitation struct {
	ID            string    `json:"id"`
	GroupID       string    `json:"group_id"`
	Token         string    `json:"-"` // opaque, never serialized back out
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	InvitedRole   string    `json:"invited_role"`
	Status        string    `json:"status"`
	InvitedBy     string    `json:"invited_by,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	FormSubmitted bool      `json:"form_submitted"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsExpired reports whether the invitation is past its expiry at the given time.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsOpen reports whether the invitation can still be looked up or accepted
// (ignoring expiry, which is checked separately).
func (i *Invitation) IsOpen() bool {
	return i.Status == InvitationPending || i.Status == InvitationInvited
}

// InvitationProfile carries the profile fields a candidate submits on acceptance.
type InvitationProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}
