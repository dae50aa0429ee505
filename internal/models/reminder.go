package models

// ReminderTarget is one member to receive a contribution reminder,
// joined with the group policy the reminder is about.
type ReminderTarget struct {
	GroupName          string
	ContributionAmount float64
	Frequency          string
	Email              string
	Username           string
}
