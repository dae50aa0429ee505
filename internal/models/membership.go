package models

import "time"

// Membership roles
const (
	RoleAdmin     = "admin"
	RoleTreasurer = "treasurer"
	RoleSecretary = "secretary"
	RoleMember    = "member"
)

// Membership statuses
const (
	MembershipActive   = "active"
	MembershipInactive = "inactive"
)

// Membership represents the relationship between a user and a group.
// At most one active membership exists per (group, user) pair.
type Membership struct {
	ID       string    `json:"id"`
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

// ValidRole reports whether role is one of the recognized membership roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTreasurer, RoleSecretary, RoleMember:
		return true
	}
	return false
}

// CanManage reports whether the membership's role may approve loans,
// change group settings and manage members.
func (m *Membership) CanManage() bool {
	return m.Role == RoleAdmin || m.Role == RoleTreasurer
}
