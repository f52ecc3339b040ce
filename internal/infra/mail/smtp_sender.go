// Package mail holds the mail.Sender implementations: SMTP through gomail and a log-only
// sender for development.
package mail

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	domainMail "order_reminder_service/internal/domain/mail"
	"order_reminder_service/internal/infra/config"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends plain-text mail through an SMTP relay.
type SMTPSender struct {
	dialer dialer
	from   string
	logger *logrus.Entry
}

var _ domainMail.Sender = (*SMTPSender)(nil)

func NewSMTPSender(host string, port int, username, password, from string, logger *logrus.Entry) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: logger.WithField("component", "smtp"),
	}
}

// Send delivers the message. gomail has no context support, so a cancelled ctx abandons the
// dial in the background and returns immediately. The abandoned conversation may still
// complete, so a reminder recorded as failed on timeout can have been delivered.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		s.logger.WithField("to", to).Debug("Mail sent")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *logrus.Entry
}

var _ domainMail.Sender = (*LogSender)(nil)

func NewLogSender(logger *logrus.Entry) *LogSender {
	return &LogSender{logger: logger.WithField("component", "mail_log")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"to": to, "subject": subject, "body_length": len(body)}).Info("Mail delivery (log driver)")
	return nil
}

// New builds the sender selected by MAIL_DRIVER.
func New(cfg *config.AppConfig, logger *logrus.Entry) (domainMail.Sender, error) {
	switch cfg.MailDriver {
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, logger), nil
	case "log", "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
}
