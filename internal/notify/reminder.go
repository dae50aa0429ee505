package notify

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/models"
)

// TargetSource supplies the members due a contribution reminder.
type TargetSource interface {
	ContributionReminderTargets(ctx context.Context) ([]models.ReminderTarget, error)
}

// ReminderScheduler periodically dispatches contribution reminders to active
// members of groups with a configured contribution frequency. The ledger
// engine stays request-driven; scheduling lives entirely here.
type ReminderScheduler struct {
	cron   *cron.Cron
	source TargetSource
	sender Dispatcher
	log    *logrus.Logger
}

// NewReminderScheduler creates a scheduler over the given target source and
// dispatcher.
func NewReminderScheduler(source TargetSource, sender Dispatcher, log *logrus.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		cron:   cron.New(),
		source: source,
		sender: sender,
		log:    log,
	}
}

// Start schedules reminder runs with the given cron spec (e.g. "0 9 * * *").
func (s *ReminderScheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Infof("Contribution reminder scheduler started: %s", spec)
	return nil
}

// Stop halts the scheduler.
func (s *ReminderScheduler) Stop() {
	s.cron.Stop()
}

func (s *ReminderScheduler) run() {
	targets, err := s.source.ContributionReminderTargets(context.Background())
	if err != nil {
		s.log.Errorf("Failed to load reminder targets: %v", err)
		return
	}
	for _, t := range targets {
		s.sender.Dispatch(Message{
			To:      []string{t.Email},
			Event:   EventContributionReminder,
			Subject: fmt.Sprintf("Contribution reminder: %s", t.GroupName),
			Body: fmt.Sprintf(
				"Dear %s,\n\nThis is a reminder that your %s contribution of %.2f to %s is due.\n\nBest regards,\n%s",
				t.Username, t.Frequency, t.ContributionAmount, t.GroupName, t.GroupName),
		})
	}
	s.log.Infof("Dispatched %d contribution reminders", len(targets))
}
