// Package notify delivers best-effort notifications for committed ledger
// transitions. Dispatch never blocks the caller and never reports failure
// back to the business operation that triggered it; delivery problems are
// logged only.
package notify

import (
	"github.com/sirupsen/logrus"
)

// Events the engine emits after committed transitions.
const (
	EventLoanDecided          = "loan_decided"
	EventLoanDisbursed        = "loan_disbursed"
	EventRepaymentRecorded    = "repayment_recorded"
	EventContributionRecorded = "contribution_recorded"
	EventInvitationCreated    = "invitation_created"
	EventInvitationAccepted   = "invitation_accepted"
	EventContributionReminder = "contribution_reminder"
)

// Message is one notification to deliver.
type Message struct {
	To      []string // recipient email addresses
	Event   string
	Subject string
	Body    string
}

// Dispatcher delivers messages fire-and-forget.
type Dispatcher interface {
	Dispatch(msg Message)
}

// LogDispatcher logs messages instead of delivering them. Used when no SMTP
// transport is configured.
type LogDispatcher struct {
	log *logrus.Logger
}

// NewLogDispatcher creates a dispatcher that only logs.
func NewLogDispatcher(log *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

// Dispatch logs the message.
func (d *LogDispatcher) Dispatch(msg Message) {
	d.log.WithFields(logrus.Fields{
		"event":      msg.Event,
		"recipients": len(msg.To),
		"subject":    msg.Subject,
	}).Info("notification (log only)")
}
