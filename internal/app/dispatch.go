package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/domain/mail"
	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
)

const replacedAtDispatchReason = "Order has been replaced"

// SweepResult aggregates the outcome of one dispatch pass. Skipped counts reminders that were
// claimed by someone else, changed state mid-flight or were abandoned because the sweep was stopped.
type SweepResult struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

type sweepCounters struct {
	sent, failed, cancelled, skipped atomic.Int64
}

type SweepOption func(*DispatchSweep)

func WithWorkers(n int) SweepOption {
	return func(s *DispatchSweep) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithBatchSize(n int) SweepOption {
	return func(s *DispatchSweep) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClaimTTL sets how long a claim protects a reminder before another sweep may take it over.
func WithClaimTTL(d time.Duration) SweepOption {
	return func(s *DispatchSweep) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

func WithSendTimeout(d time.Duration) SweepOption {
	return func(s *DispatchSweep) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// DispatchSweep delivers due pending reminders through a mail sender.
type DispatchSweep struct {
	reminders reminder.Repository
	orders    order.Repository
	lifecycle *LifecycleManager
	sender    mail.Sender
	logger    *logrus.Entry
	Now       func() time.Time

	workers     int
	batchSize   int
	claimTTL    time.Duration
	sendTimeout time.Duration
}

func NewDispatchSweep(reminders reminder.Repository, orders order.Repository, lifecycle *LifecycleManager, sender mail.Sender, logger *logrus.Entry, opts ...SweepOption) *DispatchSweep {
	s := &DispatchSweep{
		reminders:   reminders,
		orders:      orders,
		lifecycle:   lifecycle,
		sender:      sender,
		logger:      logger.WithField("component", "dispatch"),
		Now:         time.Now,
		workers:     4,
		batchSize:   500,
		claimTTL:    10 * time.Minute,
		sendTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sendTimeout >= s.claimTTL {
		// A send must end while its claim still holds, or another sweep delivers it again.
		s.logger.WithFields(logrus.Fields{
			"send_timeout": s.sendTimeout.String(),
			"claim_ttl":    s.claimTTL.String(),
		}).Warn("Send timeout not below claim TTL, lowering it")
		s.sendTimeout = s.claimTTL / 2
	}
	return s
}

// DueReminders returns up to limit pending reminders due at now that are not claimed by a
// live sweep, oldest first.
func (s *DispatchSweep) DueReminders(ctx context.Context, now time.Time, limit int) ([]*reminder.Reminder, error) {
	due, err := s.reminders.ListDue(ctx, now.UTC(), now.Add(-s.claimTTL).UTC(), limit)
	if err != nil {
		return nil, apperr.Transient("list due reminders", err)
	}
	return due, nil
}

// Run performs one dispatch pass. Only a failure to load the due reminders is returned as an
// error; per-reminder problems are logged and counted.
func (s *DispatchSweep) Run(ctx context.Context) (SweepResult, error) {
	started := s.Now()
	log := s.logger.WithField("sweep_id", uuid.NewString())

	due, err := s.DueReminders(ctx, started, s.batchSize)
	if err != nil {
		log.WithError(err).Error("Failed to load due reminders")
		return SweepResult{}, err
	}
	if len(due) == 0 {
		log.Debug("No due reminders")
		return SweepResult{}, nil
	}
	log.WithField("due", len(due)).Info("Dispatch sweep started")

	var (
		c sweepCounters
		g errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, r := range due {
		r := r
		g.Go(func() error {
			s.dispatch(ctx, log.WithField("reminder_id", r.ID), r, &c)
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{
		Total:     len(due),
		Sent:      int(c.sent.Load()),
		Failed:    int(c.failed.Load()),
		Cancelled: int(c.cancelled.Load()),
		Skipped:   int(c.skipped.Load()),
	}
	log.WithFields(logrus.Fields{
		"total":     res.Total,
		"sent":      res.Sent,
		"failed":    res.Failed,
		"cancelled": res.Cancelled,
		"skipped":   res.Skipped,
		"duration":  time.Since(started).String(),
	}).Info("Dispatch sweep finished")
	return res, nil
}

func (s *DispatchSweep) dispatch(ctx context.Context, log *logrus.Entry, r *reminder.Reminder, c *sweepCounters) {
	if ctx.Err() != nil {
		c.skipped.Add(1)
		return
	}

	now := s.Now().UTC()
	claimed, err := s.reminders.Claim(ctx, r.ID, uuid.NewString(), now, now.Add(-s.claimTTL))
	if err != nil {
		log.WithError(err).Error("Failed to claim reminder")
		c.skipped.Add(1)
		return
	}
	if !claimed {
		log.Debug("Reminder claimed elsewhere or no longer pending")
		c.skipped.Add(1)
		return
	}

	o, err := s.orders.GetByID(ctx, r.OrderID)
	if err != nil {
		// The claim expires and a later sweep retries.
		log.WithError(err).WithField("order_id", r.OrderID).Error("Failed to load order for reminder")
		c.skipped.Add(1)
		return
	}
	if o.IsReplaced() {
		ok, err := s.lifecycle.Cancel(ctx, r, replacedAtDispatchReason)
		switch {
		case err != nil:
			log.WithError(err).Error("Failed to cancel reminder of replaced order")
			c.skipped.Add(1)
		case ok:
			log.WithField("replaced_by", o.ReplacedBy.Int64).Info("Order replaced, reminder cancelled")
			c.cancelled.Add(1)
		default:
			c.skipped.Add(1)
		}
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	sendErr := s.sender.Send(sendCtx, r.Recipient, r.Subject, r.Body)
	cancel()

	if sendErr != nil {
		if ctx.Err() != nil {
			// Sweep stopped mid-send; leave the reminder pending for the next pass.
			log.WithError(sendErr).Warn("Sweep cancelled during delivery")
			c.skipped.Add(1)
			return
		}
		msg := sendErr.Error()
		if errors.Is(sendErr, context.DeadlineExceeded) {
			msg = "mail delivery timed out after " + s.sendTimeout.String()
		}
		ok, err := s.lifecycle.MarkFailed(ctx, r, msg)
		switch {
		case err != nil:
			log.WithError(err).Error("Failed to record delivery failure")
			c.skipped.Add(1)
		case ok:
			log.WithError(sendErr).Warn("Reminder delivery failed")
			c.failed.Add(1)
		default:
			c.skipped.Add(1)
		}
		return
	}

	ok, err := s.lifecycle.MarkSent(ctx, r)
	switch {
	case err != nil:
		log.WithError(err).Error("Reminder delivered but could not be marked sent")
		c.skipped.Add(1)
	case ok:
		c.sent.Add(1)
	default:
		log.Warn("Reminder delivered after it left pending, state kept")
		c.skipped.Add(1)
	}
}
