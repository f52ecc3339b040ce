package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/infra/database"
	"order_reminder_service/internal/infra/database/databasetest"
)

type reminderFixture struct {
	repo  *database.ReminderRepository
	order *order.Order
	rule  *reminder.Rule
}

func newReminderFixture(t *testing.T) (*database.DB, reminderFixture) {
	t.Helper()
	db := databasetest.New(t)
	holder := databasetest.Holder(t, db, "Acme", "en")
	ot := databasetest.FixedPeriodType(t, db, "TYPE_X", 12)
	o := &order.Order{
		OrderTypeID:     ot.ID,
		HolderID:        holder.ID,
		ApplicationDate: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		ExpirationDate:  time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		IsActive:        true,
	}
	require.NoError(t, database.NewOrderRepository(db).Create(context.Background(), o))
	rule := databasetest.Rule(t, db, reminder.DirectionPre, 7, 1)
	return db, reminderFixture{repo: database.NewReminderRepository(db), order: o, rule: rule}
}

func (f reminderFixture) pending(t *testing.T, scheduledAt time.Time, rule *reminder.Rule) *reminder.Reminder {
	t.Helper()
	r := &reminder.Reminder{
		OrderID:      f.order.ID,
		ScheduledAt:  scheduledAt,
		Recipient:    "billing@acme.example",
		LanguageCode: "en",
		Subject:      "subject",
		Body:         "body",
	}
	if rule != nil {
		r.RuleID = sql.NullInt64{Int64: rule.ID, Valid: true}
	}
	require.NoError(t, f.repo.Create(context.Background(), r))
	return r
}

func TestReminderRepositoryRejectsSecondPendingForSameRule(t *testing.T) {
	ctx := context.Background()
	_, f := newReminderFixture(t)
	at := time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)

	first := f.pending(t, at, f.rule)
	dup := &reminder.Reminder{
		OrderID: f.order.ID, RuleID: first.RuleID, ScheduledAt: at,
		Recipient: "x@example.com", LanguageCode: "en", Subject: "s", Body: "b",
	}
	assert.ErrorIs(t, f.repo.Create(ctx, dup), database.ErrDuplicatePendingReminder)

	exists, err := f.repo.ExistsPending(ctx, f.order.ID, f.rule.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// once the first one is terminal a new pending reminder is allowed
	ok, err := f.repo.Cancel(ctx, first.ID, "Order details updated", at)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.repo.Create(ctx, dup))
}

func TestReminderRepositoryTransitionsAreConditional(t *testing.T) {
	ctx := context.Background()
	_, f := newReminderFixture(t)
	now := time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC)
	r := f.pending(t, now.Add(-time.Hour), f.rule)

	ok, err := f.repo.MarkSent(ctx, r.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	for name, op := range map[string]func() (bool, error){
		"sent again": func() (bool, error) { return f.repo.MarkSent(ctx, r.ID, now) },
		"failed":     func() (bool, error) { return f.repo.MarkFailed(ctx, r.ID, "smtp down", now) },
		"cancelled":  func() (bool, error) { return f.repo.Cancel(ctx, r.ID, "late", now) },
	} {
		ok, err := op()
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}

	got, err := f.repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusSent, got.Status)
	assert.True(t, got.SentAt.Valid)
	assert.True(t, now.Equal(got.SentAt.Time))
	assert.False(t, got.ErrorMessage.Valid)
}

func TestReminderRepositoryDueAndClaim(t *testing.T) {
	ctx := context.Background()
	db, f := newReminderFixture(t)
	now := time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC)
	later := databasetest.Rule(t, db, reminder.DirectionPre, 3, 2)
	earlier := databasetest.Rule(t, db, reminder.DirectionPre, 1, 3)

	second := f.pending(t, now.Add(-time.Hour), f.rule)
	first := f.pending(t, now.Add(-2*time.Hour), earlier)
	f.pending(t, now.Add(time.Hour), later) // not due yet

	due, err := f.repo.ListDue(ctx, now, now.Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, second.ID, due[1].ID)

	stale := now.Add(-10 * time.Minute)
	ok, err := f.repo.Claim(ctx, first.ID, "worker-a", now, stale)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.repo.Claim(ctx, first.ID, "worker-b", now, stale)
	require.NoError(t, err)
	assert.False(t, ok, "fresh claim must not be stolen")

	due, err = f.repo.ListDue(ctx, now, stale, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, second.ID, due[0].ID)

	// an abandoned claim becomes claimable again
	muchLater := now.Add(time.Hour)
	ok, err = f.repo.Claim(ctx, first.ID, "worker-b", muchLater, muchLater.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusPending, got.Status, "claim never changes the visible status")
	assert.Equal(t, "worker-b", got.ClaimToken.String)
}

func TestReminderRepositoryCancelAllForOrder(t *testing.T) {
	ctx := context.Background()
	db, f := newReminderFixture(t)
	at := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	r3 := databasetest.Rule(t, db, reminder.DirectionPre, 3, 2)

	a := f.pending(t, at, f.rule)
	b := f.pending(t, at, r3)
	ok, err := f.repo.MarkFailed(ctx, b.ID, "mailbox full", at)
	require.NoError(t, err)
	require.True(t, ok)
	f.pending(t, at, nil)

	n, err := f.repo.CancelAllForOrder(ctx, f.order.ID, "Order replaced", at)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusCancelled, got.Status)
	assert.Equal(t, "Order replaced", got.ErrorMessage.String)

	counts, err := f.repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts[reminder.StatusPending])
	assert.Equal(t, 2, counts[reminder.StatusCancelled])
	assert.Equal(t, 1, counts[reminder.StatusFailed])
	assert.Equal(t, 0, counts[reminder.StatusSent])

	list, err := f.repo.List(ctx, reminder.ListFilter{OrderID: f.order.ID, Status: reminder.StatusCancelled})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestReminderRepositoryCascadesWithOrder(t *testing.T) {
	ctx := context.Background()
	db, f := newReminderFixture(t)
	r := f.pending(t, time.Now(), f.rule)

	_, err := db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, f.order.ID)
	require.NoError(t, err)

	_, err = f.repo.GetByID(ctx, r.ID)
	assert.ErrorIs(t, err, database.ErrReminderNotFound)
}
