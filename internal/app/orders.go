package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	idb "order_reminder_service/internal/infra/database"
)

// Cancellation reasons recorded on reminders.
const (
	ReasonOrderReplaced    = "Order replaced"
	ReasonOrderUpdated     = "Order details updated"
	ReasonOrderDeactivated = "Order deactivated"
)

// OrderInput describes a new order. The expiration date is always derived.
type OrderInput struct {
	HolderID        int64
	OrderTypeID     int64
	ApplicationDate time.Time
	ExternalRef     string
}

// OrderUpdate carries the optional changes of an order. Nil fields stay untouched.
type OrderUpdate struct {
	ApplicationDate *time.Time
	IsActive        *bool
	ExternalRef     *string
}

type OrderTypeInput struct {
	Code         string
	Name         string
	Policy       order.ExpirationPolicy
	PeriodMonths int
}

// ReplaceResult reports the effects of superseding one order with another.
type ReplaceResult struct {
	Old       *order.Order
	New       *order.Order
	Cancelled int
	Scheduled []*reminder.Reminder
}

// OrderService owns the order lifecycle: creation with automatic supersession, edits that
// invalidate scheduled reminders, explicit replacement and expiry queries.
type OrderService struct {
	orders    order.Repository
	types     order.TypeRepository
	holders   order.HolderRepository
	scheduler *ReminderScheduler
	lifecycle *LifecycleManager
	logger    *logrus.Entry
	Now       func() time.Time
}

func NewOrderService(
	orders order.Repository,
	types order.TypeRepository,
	holders order.HolderRepository,
	scheduler *ReminderScheduler,
	lifecycle *LifecycleManager,
	logger *logrus.Entry,
) *OrderService {
	return &OrderService{
		orders:    orders,
		types:     types,
		holders:   holders,
		scheduler: scheduler,
		lifecycle: lifecycle,
		logger:    logger.WithField("component", "orders"),
		Now:       time.Now,
	}
}

// Create stores a new active order, supersedes the holder's other active orders of the same
// type and schedules reminders for it.
func (s *OrderService) Create(ctx context.Context, in OrderInput) (*order.Order, error) {
	if in.ApplicationDate.IsZero() {
		return nil, apperr.Validation("application_date", "is required")
	}
	if _, err := s.holder(ctx, in.HolderID); err != nil {
		return nil, err
	}
	ot, err := s.OrderType(ctx, in.OrderTypeID)
	if err != nil {
		return nil, err
	}
	if !ot.IsActive {
		return nil, apperr.Validation("order_type_id", "order type %s is inactive", ot.Code)
	}

	previous, err := s.orders.ListActiveForHolder(ctx, in.HolderID, in.OrderTypeID)
	if err != nil {
		return nil, apperr.Transient("list holder orders", err)
	}

	o := &order.Order{
		OrderTypeID:     in.OrderTypeID,
		HolderID:        in.HolderID,
		ApplicationDate: in.ApplicationDate,
		IsActive:        true,
	}
	if ref := strings.TrimSpace(in.ExternalRef); ref != "" {
		o.ExternalRef = sql.NullString{String: ref, Valid: true}
	}
	o.Recompute(ot)
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, apperr.Transient("create order", err)
	}
	log := s.logger.WithField("order_id", o.ID)
	log.WithField("expiration_date", o.ExpirationDate.Format(time.DateOnly)).Info("Order created")

	for _, prev := range previous {
		if _, err := s.supersede(ctx, prev, o); err != nil {
			log.WithError(err).WithField("previous_order_id", prev.ID).Error("Failed to supersede previous order")
		}
	}

	if _, err := s.scheduler.Schedule(ctx, o); err != nil {
		log.WithError(err).Error("Failed to schedule reminders for new order")
	}
	return o, nil
}

// Update applies edits. A new application date recomputes the expiration, cancels the pending
// reminders and schedules fresh ones; deactivation cancels them; reactivation schedules.
func (s *OrderService) Update(ctx context.Context, id int64, upd OrderUpdate) (*order.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive := o.IsActive

	dateChanged := upd.ApplicationDate != nil && !upd.ApplicationDate.Equal(o.ApplicationDate)
	if dateChanged {
		if upd.ApplicationDate.IsZero() {
			return nil, apperr.Validation("application_date", "must not be empty")
		}
		ot, err := s.OrderType(ctx, o.OrderTypeID)
		if err != nil {
			return nil, err
		}
		o.ApplicationDate = *upd.ApplicationDate
		o.Recompute(ot)
	}
	if upd.IsActive != nil {
		o.IsActive = *upd.IsActive
	}
	if upd.ExternalRef != nil {
		ref := strings.TrimSpace(*upd.ExternalRef)
		o.ExternalRef = sql.NullString{String: ref, Valid: ref != ""}
	}

	if err := s.orders.Update(ctx, o); err != nil {
		if errors.Is(err, idb.ErrOrderNotFound) {
			return nil, apperr.NotFound("order", id)
		}
		return nil, apperr.Transient("update order", err)
	}
	log := s.logger.WithField("order_id", id)

	switch {
	case wasActive && !o.IsActive:
		if _, err := s.lifecycle.CancelAllForOrder(ctx, id, ReasonOrderDeactivated); err != nil {
			return nil, err
		}
		log.Info("Order deactivated")
	case dateChanged:
		if _, err := s.lifecycle.CancelAllForOrder(ctx, id, ReasonOrderUpdated); err != nil {
			return nil, err
		}
		s.scheduleIfPossible(ctx, log, o)
	case !wasActive && o.IsActive:
		s.scheduleIfPossible(ctx, log, o)
	}
	return o, nil
}

// Replace supersedes oldID with newID: the forward pointer is written first, then the old
// order's pending reminders are cancelled, then the new order is scheduled.
func (s *OrderService) Replace(ctx context.Context, oldID, newID int64) (*ReplaceResult, error) {
	if oldID == newID {
		return nil, apperr.Validation("replacement_order_id", "an order cannot replace itself")
	}
	old, err := s.Get(ctx, oldID)
	if err != nil {
		return nil, err
	}
	replacement, err := s.Get(ctx, newID)
	if err != nil {
		return nil, err
	}
	if old.IsReplaced() {
		return nil, apperr.OrderAlreadyReplaced(old.ID, old.ReplacedBy.Int64)
	}
	if replacement.IsReplaced() {
		return nil, apperr.Validation("replacement_order_id", "order %d is itself replaced", newID)
	}

	cancelled, err := s.supersede(ctx, old, replacement)
	if err != nil {
		return nil, err
	}
	res := &ReplaceResult{Old: old, New: replacement, Cancelled: cancelled}
	if replacement.NotSchedulableReason() == "" {
		res.Scheduled, err = s.scheduler.Schedule(ctx, replacement)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *OrderService) supersede(ctx context.Context, old, replacement *order.Order) (int, error) {
	if err := s.orders.SetReplacedBy(ctx, old.ID, replacement.ID); err != nil {
		switch {
		case errors.Is(err, idb.ErrOrderNotFound):
			return 0, apperr.NotFound("order", old.ID)
		case errors.Is(err, idb.ErrOrderAlreadyReplaced):
			current, getErr := s.orders.GetByID(ctx, old.ID)
			if getErr != nil {
				return 0, apperr.Transient("get order", getErr)
			}
			return 0, apperr.OrderAlreadyReplaced(old.ID, current.ReplacedBy.Int64)
		}
		return 0, apperr.Transient("set replaced_by", err)
	}
	old.ReplacedBy = sql.NullInt64{Int64: replacement.ID, Valid: true}
	n, err := s.lifecycle.CancelAllForOrder(ctx, old.ID, ReasonOrderReplaced)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"order_id": old.ID, "replaced_by": replacement.ID, "cancelled": n}).Info("Order superseded")
	return n, nil
}

func (s *OrderService) scheduleIfPossible(ctx context.Context, log *logrus.Entry, o *order.Order) {
	if o.NotSchedulableReason() != "" {
		return
	}
	if _, err := s.scheduler.Schedule(ctx, o); err != nil {
		log.WithError(err).Error("Failed to schedule reminders")
	}
}

func (s *OrderService) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrOrderNotFound) {
			return nil, apperr.NotFound("order", id)
		}
		return nil, apperr.Transient("get order", err)
	}
	return o, nil
}

// ExpiringWithin lists active orders expiring between now and now + days. typeID 0 means any.
func (s *OrderService) ExpiringWithin(ctx context.Context, days int, typeID int64) ([]*order.Order, error) {
	if days < 0 {
		return nil, apperr.Validation("days", "must not be negative")
	}
	now := s.Now()
	return s.between(ctx, now, now.AddDate(0, 0, days), typeID)
}

// ExpiredWithin lists active orders whose expiration lies in the last days days.
func (s *OrderService) ExpiredWithin(ctx context.Context, days int, typeID int64) ([]*order.Order, error) {
	if days < 0 {
		return nil, apperr.Validation("days", "must not be negative")
	}
	now := s.Now()
	return s.between(ctx, now.AddDate(0, 0, -days), now, typeID)
}

func (s *OrderService) between(ctx context.Context, from, to time.Time, typeID int64) ([]*order.Order, error) {
	found, err := s.orders.ListExpiringBetween(ctx, from, to, typeID)
	if err != nil {
		return nil, apperr.Transient("list orders by expiration", err)
	}
	return found, nil
}

func (s *OrderService) OrderType(ctx context.Context, id int64) (*order.OrderType, error) {
	ot, err := s.types.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrOrderTypeNotFound) {
			return nil, apperr.NotFound("order type", id)
		}
		return nil, apperr.Transient("get order type", err)
	}
	return ot, nil
}

func (s *OrderService) ListOrderTypes(ctx context.Context) ([]*order.OrderType, error) {
	ts, err := s.types.List(ctx)
	if err != nil {
		return nil, apperr.Transient("list order types", err)
	}
	return ts, nil
}

func (s *OrderService) CreateOrderType(ctx context.Context, in OrderTypeInput) (*order.OrderType, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	switch {
	case code == "":
		return nil, apperr.Validation("code", "is required")
	case strings.TrimSpace(in.Name) == "":
		return nil, apperr.Validation("name", "is required")
	case !in.Policy.Valid():
		return nil, apperr.Validation("expiration_policy", "must be %q or %q", order.PolicyFixedPeriod, order.PolicyCalendarYearEnd)
	case in.PeriodMonths < 0:
		return nil, apperr.Validation("period_months", "must not be negative")
	}
	ot := &order.OrderType{
		Code:     code,
		Name:     strings.TrimSpace(in.Name),
		Policy:   in.Policy,
		IsActive: true,
	}
	if in.Policy == order.PolicyFixedPeriod && in.PeriodMonths > 0 {
		ot.PeriodMonths = sql.NullInt32{Int32: int32(in.PeriodMonths), Valid: true}
	}
	if err := s.types.Create(ctx, ot); err != nil {
		if errors.Is(err, idb.ErrDuplicateOrderTypeCode) {
			return nil, apperr.Validation("code", "order type %s already exists", code)
		}
		return nil, apperr.Transient("create order type", err)
	}
	s.logger.WithFields(logrus.Fields{"order_type_id": ot.ID, "code": ot.Code}).Info("Order type created")
	return ot, nil
}

func (s *OrderService) holder(ctx context.Context, id int64) (*order.Holder, error) {
	h, err := s.holders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrHolderNotFound) {
			return nil, apperr.NotFound("holder", id)
		}
		return nil, apperr.Transient("get holder", err)
	}
	return h, nil
}
