package notify

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/config"
)

// EmailDispatcher delivers notifications over SMTP.
type EmailDispatcher struct {
	cfg *config.Config
	log *logrus.Logger
}

// NewEmailDispatcher creates an SMTP-backed dispatcher.
func NewEmailDispatcher(cfg *config.Config, log *logrus.Logger) *EmailDispatcher {
	return &EmailDispatcher{cfg: cfg, log: log}
}

// Dispatch sends the message in the background. Send failures are logged and
// never surfaced to the triggering operation.
func (d *EmailDispatcher) Dispatch(msg Message) {
	go d.send(msg)
}

func (d *EmailDispatcher) send(msg Message) {
	if len(msg.To) == 0 {
		return
	}
	e := email.NewEmail()
	e.From = d.cfg.SenderEmail
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%s", d.cfg.SMTPHost, d.cfg.SMTPPort)
	auth := smtp.PlainAuth("", d.cfg.SMTPUsername, d.cfg.SMTPPassword, d.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		d.log.WithFields(logrus.Fields{
			"event":   msg.Event,
			"subject": msg.Subject,
		}).Errorf("Failed to send notification email: %v", err)
		return
	}
	d.log.Infof("Email sent for %s: %s", msg.Event, e.Subject)
}
