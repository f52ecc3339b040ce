package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/domain/reminder"
	idb "order_reminder_service/internal/infra/database"
)

// LifecycleManager performs the guarded pending -> {sent, failed, cancelled} transitions.
// Only the first transition out of pending takes effect; later ones report false.
type LifecycleManager struct {
	reminders reminder.Repository
	listeners []reminder.Listener
	logger    *logrus.Entry
	Now       func() time.Time
}

func NewLifecycleManager(reminders reminder.Repository, logger *logrus.Entry, listeners ...reminder.Listener) *LifecycleManager {
	return &LifecycleManager{
		reminders: reminders,
		listeners: listeners,
		logger:    logger.WithField("component", "lifecycle"),
		Now:       time.Now,
	}
}

// Subscribe registers an additional listener. It is not safe to call once sweeps are running.
func (m *LifecycleManager) Subscribe(l reminder.Listener) {
	m.listeners = append(m.listeners, l)
}

func (m *LifecycleManager) MarkSent(ctx context.Context, r *reminder.Reminder) (bool, error) {
	at := m.Now().UTC()
	ok, err := m.reminders.MarkSent(ctx, r.ID, at)
	if err != nil {
		return false, apperr.Transient("mark reminder sent", err)
	}
	if !ok {
		m.logger.WithField("reminder_id", r.ID).Debug("Reminder no longer pending, sent transition ignored")
		return false, nil
	}
	r.Status = reminder.StatusSent
	r.SentAt.Time, r.SentAt.Valid = at, true
	m.emit(ctx, reminder.Event{Type: reminder.EventSent, Reminder: r, At: at})
	return true, nil
}

func (m *LifecycleManager) MarkFailed(ctx context.Context, r *reminder.Reminder, message string) (bool, error) {
	at := m.Now().UTC()
	ok, err := m.reminders.MarkFailed(ctx, r.ID, message, at)
	if err != nil {
		return false, apperr.Transient("mark reminder failed", err)
	}
	if !ok {
		m.logger.WithField("reminder_id", r.ID).Debug("Reminder no longer pending, failed transition ignored")
		return false, nil
	}
	r.Status = reminder.StatusFailed
	r.ErrorMessage.String, r.ErrorMessage.Valid = message, true
	m.emit(ctx, reminder.Event{Type: reminder.EventFailed, Reminder: r, At: at})
	return true, nil
}

func (m *LifecycleManager) Cancel(ctx context.Context, r *reminder.Reminder, reason string) (bool, error) {
	ok, err := m.reminders.Cancel(ctx, r.ID, reason, m.Now().UTC())
	if err != nil {
		return false, apperr.Transient("cancel reminder", err)
	}
	if ok {
		r.Status = reminder.StatusCancelled
		r.ErrorMessage.String, r.ErrorMessage.Valid = reason, true
	}
	return ok, nil
}

// CancelAllForOrder cancels every pending reminder of an order and returns how many changed.
func (m *LifecycleManager) CancelAllForOrder(ctx context.Context, orderID int64, reason string) (int, error) {
	n, err := m.reminders.CancelAllForOrder(ctx, orderID, reason, m.Now().UTC())
	if err != nil {
		return 0, apperr.Transient("cancel reminders for order", err)
	}
	if n > 0 {
		m.logger.WithFields(logrus.Fields{"order_id": orderID, "count": n, "reason": reason}).Info("Pending reminders cancelled")
	}
	return n, nil
}

// CancelByID cancels one reminder and refuses when it is no longer pending.
func (m *LifecycleManager) CancelByID(ctx context.Context, id int64, reason string) (*reminder.Reminder, error) {
	return m.SetStatus(ctx, id, reminder.StatusCancelled, reason)
}

// SetStatus applies a manual transition out of pending. message is stored as the error
// message for failed and cancelled and ignored for sent.
func (m *LifecycleManager) SetStatus(ctx context.Context, id int64, status reminder.Status, message string) (*reminder.Reminder, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransition(status) {
		if r.Status == reminder.StatusPending {
			return nil, apperr.Validation("status", "cannot move a pending reminder to %q", status)
		}
		return nil, apperr.ReminderNotPending(id, string(r.Status))
	}

	var ok bool
	switch status {
	case reminder.StatusSent:
		ok, err = m.MarkSent(ctx, r)
	case reminder.StatusFailed:
		ok, err = m.MarkFailed(ctx, r, message)
	case reminder.StatusCancelled:
		ok, err = m.Cancel(ctx, r, message)
	default:
		return nil, apperr.Validation("status", "unknown status %q", status)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with the sweep or another caller.
		latest, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.ReminderNotPending(id, string(latest.Status))
	}
	return r, nil
}

func (m *LifecycleManager) Get(ctx context.Context, id int64) (*reminder.Reminder, error) {
	r, err := m.reminders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrReminderNotFound) {
			return nil, apperr.NotFound("reminder", id)
		}
		return nil, apperr.Transient("get reminder", err)
	}
	return r, nil
}

func (m *LifecycleManager) List(ctx context.Context, filter reminder.ListFilter) ([]*reminder.Reminder, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("status", "unknown status %q", filter.Status)
	}
	rs, err := m.reminders.List(ctx, filter)
	if err != nil {
		return nil, apperr.Transient("list reminders", err)
	}
	return rs, nil
}

func (m *LifecycleManager) emit(ctx context.Context, e reminder.Event) {
	for _, l := range m.listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					m.logger.WithFields(logrus.Fields{
						"reminder_id": e.Reminder.ID,
						"event":       e.Type,
					}).Error(fmt.Sprintf("Reminder listener panicked: %v", rec))
				}
			}()
			l.HandleReminderEvent(ctx, e)
		}()
	}
}

// AuditListener writes one structured log line per lifecycle event.
type AuditListener struct {
	logger *logrus.Entry
}

func NewAuditListener(logger *logrus.Entry) *AuditListener {
	return &AuditListener{logger: logger.WithField("component", "audit")}
}

func (a *AuditListener) HandleReminderEvent(_ context.Context, e reminder.Event) {
	entry := a.logger.WithFields(logrus.Fields{
		"reminder_id": e.Reminder.ID,
		"order_id":    e.Reminder.OrderID,
		"recipient":   e.Reminder.Recipient,
		"event":       e.Type,
		"at":          e.At.Format(time.RFC3339),
	})
	if e.Type == reminder.EventFailed {
		entry.WithField("error", e.Reminder.ErrorMessage.String).Warn("Reminder delivery failed")
		return
	}
	entry.Info("Reminder delivered")
}
