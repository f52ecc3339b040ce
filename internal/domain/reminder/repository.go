package reminder

import (
	"context"
	"time"
)

// Repository defines persistence for reminders. Every state-changing method is a conditional
// update on status = pending and reports whether a row changed.
type Repository interface {
	// Create inserts a pending reminder. A second pending reminder for the same (order, rule)
	// fails with the store's duplicate error.
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id int64) (*Reminder, error)
	ExistsPending(ctx context.Context, orderID, ruleID int64) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*Reminder, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// ListDue returns pending reminders scheduled at or before now whose claim is absent
	// or older than staleBefore, oldest first. limit <= 0 means no limit.
	ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*Reminder, error)
	// Claim marks a pending reminder as in flight for token without changing its status.
	Claim(ctx context.Context, id int64, token string, now, staleBefore time.Time) (bool, error)

	MarkSent(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, message string, at time.Time) (bool, error)
	Cancel(ctx context.Context, id int64, reason string, at time.Time) (bool, error)
	CancelAllForOrder(ctx context.Context, orderID int64, reason string, at time.Time) (int, error)
}

// RuleRepository defines persistence for interval rules. Deleted rules are invisible
// to every method except ListAll with includeDeleted.
type RuleRepository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id int64) (*Rule, error)
	Update(ctx context.Context, r *Rule) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	SetActive(ctx context.Context, id int64, active bool, at time.Time) error
	// ListActive returns active, non-deleted rules ordered by sort order, creation time and id.
	ListActive(ctx context.Context) ([]*Rule, error)
	ListAll(ctx context.Context, includeDeleted bool) ([]*Rule, error)
	// ExistsWithDays reports another non-deleted rule with the same direction and days.
	ExistsWithDays(ctx context.Context, direction Direction, days int, excludeID int64) (bool, error)
}
