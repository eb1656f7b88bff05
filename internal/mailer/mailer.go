// Package mailer sends transactional mail through the configured SMTP
// relay. Sending happens inside the request that needs it; a delivery
// failure is surfaced to the caller instead of being queued and forgotten.
package mailer

import (
	"gopkg.in/gomail.v2"

	"github.com/roamly/tour-booking/internal/config"
)

// Mailer wraps an SMTP dialer with the configured sender identity.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg config.Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUsername, cfg.EmailPassword),
		from:   cfg.EmailFrom,
	}
}

// Send delivers a plain-text message to a single recipient.
func (m *Mailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer.DialAndSend(msg)
}
