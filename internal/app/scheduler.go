package app

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/domain/template"
	"order_reminder_service/internal/i18n"
	idb "order_reminder_service/internal/infra/database"
)

// ReminderScheduler materializes pending reminders for an order from the applicable interval
// rules. Scheduling is idempotent per (order, rule) while a pending reminder exists.
type ReminderScheduler struct {
	orders     order.Repository
	types      order.TypeRepository
	holders    order.HolderRepository
	catalog    *IntervalCatalog
	templates  *TemplateService
	reminders  reminder.Repository
	lang       *i18n.Catalog
	renewalURL string
	logger     *logrus.Entry
	Now        func() time.Time
}

type SchedulerDeps struct {
	Orders     order.Repository
	Types      order.TypeRepository
	Holders    order.HolderRepository
	Catalog    *IntervalCatalog
	Templates  *TemplateService
	Reminders  reminder.Repository
	Languages  *i18n.Catalog
	RenewalURL string // "{order_id}" is replaced with the order id
}

func NewReminderScheduler(deps SchedulerDeps, logger *logrus.Entry) *ReminderScheduler {
	return &ReminderScheduler{
		orders:     deps.Orders,
		types:      deps.Types,
		holders:    deps.Holders,
		catalog:    deps.Catalog,
		templates:  deps.Templates,
		reminders:  deps.Reminders,
		lang:       deps.Languages,
		renewalURL: deps.RenewalURL,
		logger:     logger.WithField("component", "scheduler"),
		Now:        time.Now,
	}
}

// ScheduleByID loads the order and schedules it.
func (s *ReminderScheduler) ScheduleByID(ctx context.Context, orderID int64) ([]*reminder.Reminder, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, idb.ErrOrderNotFound) {
			return nil, apperr.NotFound("order", orderID)
		}
		return nil, apperr.Transient("get order", err)
	}
	return s.Schedule(ctx, o)
}

// Schedule creates a pending reminder for every applicable rule whose send time is not in the
// past and which has no pending reminder for the order yet. It returns only the new reminders.
func (s *ReminderScheduler) Schedule(ctx context.Context, o *order.Order) ([]*reminder.Reminder, error) {
	if reason := o.NotSchedulableReason(); reason != "" {
		return nil, apperr.OrderNotSchedulable(o.ID, reason)
	}
	log := s.logger.WithField("order_id", o.ID)

	ot, err := s.types.GetByID(ctx, o.OrderTypeID)
	if err != nil {
		if errors.Is(err, idb.ErrOrderTypeNotFound) {
			return nil, apperr.NotFound("order type", o.OrderTypeID)
		}
		return nil, apperr.Transient("get order type", err)
	}
	holder, err := s.holders.GetByID(ctx, o.HolderID)
	if err != nil {
		if errors.Is(err, idb.ErrHolderNotFound) {
			return nil, apperr.NotFound("holder", o.HolderID)
		}
		return nil, apperr.Transient("get holder", err)
	}
	rules, err := s.catalog.Resolve(ctx, ot)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	lang := s.lang.Resolve(holder.LanguageCode)
	created := make([]*reminder.Reminder, 0, len(rules))
	for _, rule := range rules {
		rlog := log.WithField("rule_id", rule.ID)

		at := rule.ScheduledAt(o.ExpirationDate)
		if at.Before(now) {
			rlog.WithField("scheduled_at", at.Format(time.RFC3339)).Debug("Send time already passed, rule skipped")
			continue
		}

		exists, err := s.reminders.ExistsPending(ctx, o.ID, rule.ID)
		if err != nil {
			rlog.WithError(err).Error("Failed to check for an existing pending reminder")
			continue
		}
		if exists {
			rlog.Debug("Pending reminder already exists, rule skipped")
			continue
		}

		tpl, err := s.templates.Resolve(ctx, rule.Direction, lang)
		if err != nil {
			rlog.WithError(err).Error("Failed to load email template")
			continue
		}
		if tpl == nil {
			rlog.WithFields(logrus.Fields{"direction": rule.Direction, "language": lang}).
				Warn("No active email template for direction and language, rule skipped")
			continue
		}

		subject, body := tpl.Render(s.renderData(o, ot, holder, rule, tpl.LanguageCode))
		r := &reminder.Reminder{
			OrderID:      o.ID,
			RuleID:       sql.NullInt64{Int64: rule.ID, Valid: true},
			TemplateID:   sql.NullInt64{Int64: tpl.ID, Valid: true},
			ScheduledAt:  at,
			Status:       reminder.StatusPending,
			Recipient:    holder.Email,
			LanguageCode: tpl.LanguageCode,
			Subject:      subject,
			Body:         body,
		}
		if err := s.reminders.Create(ctx, r); err != nil {
			if errors.Is(err, idb.ErrDuplicatePendingReminder) {
				rlog.Debug("Pending reminder created concurrently, rule skipped")
				continue
			}
			rlog.WithError(err).Error("Failed to persist reminder")
			continue
		}
		created = append(created, r)
	}

	log.WithFields(logrus.Fields{"rules": len(rules), "scheduled": len(created)}).Info("Reminders scheduled")
	return created, nil
}

func (s *ReminderScheduler) renderData(o *order.Order, ot *order.OrderType, h *order.Holder, rule *reminder.Rule, lang string) map[string]string {
	return map[string]string{
		template.KeyBusinessName:   h.Name,
		template.KeyHolderName:     h.Name,
		template.KeyOrderType:      ot.Name,
		template.KeyOrderCode:      ot.Code,
		template.KeyExpirationDate: s.lang.FormatDate(lang, o.ExpirationDate),
		template.KeyInterval:       s.lang.Translate(lang, i18n.Phrase{Key: rule.PhraseKey(), Count: rule.Days}),
		template.KeyRenewalLink:    strings.ReplaceAll(s.renewalURL, "{order_id}", strconv.FormatInt(o.ID, 10)),
	}
}
