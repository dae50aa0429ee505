package models

import "time"

// Group statuses
const (
	GroupActive   = "active"
	GroupInactive = "inactive"
)

// Group represents a chama (pooled savings group) and its policy settings
type Group struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Settings    GroupSettings `json:"settings"`
	MemberCount int           `json:"member_count"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// GroupSettings holds the configurable contribution and loan policy for a group
type GroupSettings struct {
	ContributionAmount        float64    `json:"contribution_amount"`
	ContributionFrequency     string     `json:"contribution_frequency"` // e.g. "weekly", "monthly"
	MinContribution           float64    `json:"min_contribution"`
	MaxContribution           float64    `json:"max_contribution"`
	AllowPartialContributions bool       `json:"allow_partial_contributions"`
	InterestRate              float64    `json:"interest_rate"`       // percent, simple interest
	MaxLoanMultiplier         float64    `json:"max_loan_multiplier"` // times member savings
	GracePeriodDays           int        `json:"grace_period_days"`
	Rules                     GroupRules `json:"rules"`
}

// GroupRules is the structured rules document attached to a group.
// Recognized keys are typed fields; anything else rides in Extra and is
// persisted verbatim but must be a flat document of scalar values.
type GroupRules struct {
	RulesText       string         `json:"rules_text,omitempty"`
	TermsText       string         `json:"terms_text,omitempty"`
	MeetingSchedule string         `json:"meeting_schedule,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}
