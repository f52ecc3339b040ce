package telegram

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/domain/reminder"
)

// AlertListener notifies the admin chat when a reminder fails to deliver.
type AlertListener struct {
	messenger Messenger
	adminID   int64
	logger    *logrus.Entry
}

var _ reminder.Listener = (*AlertListener)(nil)

func NewAlertListener(m Messenger, adminID int64, logger *logrus.Entry) *AlertListener {
	return &AlertListener{
		messenger: m,
		adminID:   adminID,
		logger:    logger.WithField("component", "telegram_alerts"),
	}
}

func (l *AlertListener) HandleReminderEvent(_ context.Context, e reminder.Event) {
	if e.Type != reminder.EventFailed || e.Reminder == nil || l.adminID == 0 {
		return
	}
	text := failureAlert(e)
	if err := l.messenger.SendMessage(l.adminID, text, nil); err != nil {
		l.logger.WithError(err).WithField("reminder_id", e.Reminder.ID).Warn("Could not deliver failure alert")
	}
}

func failureAlert(e reminder.Event) string {
	r := e.Reminder
	reason := "unknown error"
	if r.ErrorMessage.Valid && r.ErrorMessage.String != "" {
		reason = r.ErrorMessage.String
	}
	return fmt.Sprintf("Reminder #%d for order #%d to %s failed at %s: %s",
		r.ID, r.OrderID, r.Recipient, e.At.UTC().Format("2006-01-02 15:04 MST"), reason)
}
