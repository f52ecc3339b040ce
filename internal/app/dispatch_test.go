package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/infra/database/databasetest"
	"order_reminder_service/internal/infra/logger"
)

func scheduledOrder(t *testing.T, e *env) int64 {
	t.Helper()
	e.defaultRules(t)
	holder := databasetest.Holder(t, e.db, "Acme", "en")
	ot := databasetest.FixedPeriodType(t, e.db, "TYPE_X", 12)
	o := e.newOrder(t, holder, ot, day(2024, time.March, 15))
	created, err := e.scheduler.Schedule(context.Background(), o)
	require.NoError(t, err)
	require.Len(t, created, 3)
	return o.ID
}

func TestSweepDeliversDueReminder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))
	orderID := scheduledOrder(t, e)

	// the 7-day reminder is due at 2025-03-08T00:00, the others later
	e.clock.Set(time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC))
	res, err := e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.SweepResult{Total: 1, Sent: 1}, res)

	sent := e.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "billing@acme.example", sent[0].To)
	assert.Equal(t, "TYPE_X license expires on 15 March 2025", sent[0].Subject)

	list, err := e.reminders.List(ctx, reminder.ListFilter{OrderID: orderID, Status: reminder.StatusSent})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].SentAt.Valid)
	assert.True(t, time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC).Equal(list[0].SentAt.Time))
	assert.Equal(t, []reminder.EventType{reminder.EventSent}, e.events.Types())

	// nothing left to do until the next reminder is due
	res, err = e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.SweepResult{}, res)
	assert.Len(t, e.pending(t, orderID), 2)
}

func TestSweepRecordsDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))
	orderID := scheduledOrder(t, e)
	e.sender.err = errMailbox

	e.clock.Set(time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC))
	res, err := e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.SweepResult{Total: 1, Failed: 1}, res)

	failed, err := e.reminders.List(ctx, reminder.ListFilter{OrderID: orderID, Status: reminder.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, errMailbox.Error(), failed[0].ErrorMessage.String)
	assert.False(t, failed[0].SentAt.Valid)
	assert.Equal(t, []reminder.EventType{reminder.EventFailed}, e.events.Types())

	// failed is terminal: a later sweep does not retry it
	e.sender.err = nil
	res, err = e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestSweepTreatsTimeoutAsFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))
	scheduledOrder(t, e)
	e.sender.block = make(chan struct{}) // never released

	e.clock.Set(time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC))
	res, err := e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.SweepResult{Total: 1, Failed: 1}, res)

	failed, err := e.reminders.List(ctx, reminder.ListFilter{Status: reminder.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage.String, "timed out")
}

func TestSweepKeepsSendTimeoutBelowClaimTTL(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))
	scheduledOrder(t, e)
	e.sender.block = make(chan struct{})

	sweep := app.NewDispatchSweep(e.reminders, e.orderRepo, e.lifecycle, e.sender, logger.Discard(),
		app.WithClaimTTL(200*time.Millisecond), app.WithSendTimeout(5*time.Minute))
	sweep.Now = e.clock.Now

	e.clock.Set(time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC))
	start := time.Now()
	res, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.SweepResult{Total: 1, Failed: 1}, res)
	assert.Less(t, time.Since(start), 2*time.Second)

	failed, err := e.reminders.List(ctx, reminder.ListFilter{Status: reminder.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage.String, "timed out after 100ms")
}

func TestSweepCancelsRemindersOfReplacedOrders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))
	orderID := scheduledOrder(t, e)

	// replaced without going through the cancellation cascade
	other := e.newOrder(t, databasetest.Holder(t, e.db, "Other", "en"), databasetest.FixedPeriodType(t, e.db, "TYPE_Z", 12), day(2025, time.March, 1))
	require.NoError(t, e.orderRepo.SetReplacedBy(ctx, orderID, other.ID))

	e.clock.Set(time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC))
	res, err := e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.SweepResult{Total: 3, Cancelled: 3}, res)
	assert.Empty(t, e.sender.Sent())

	cancelled, err := e.reminders.List(ctx, reminder.ListFilter{OrderID: orderID, Status: reminder.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 3)
	assert.Equal(t, "Order has been replaced", cancelled[0].ErrorMessage.String)
}

func TestSweepSkipsRemindersClaimedElsewhere(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(2025, time.January, 1))
	orderID := scheduledOrder(t, e)
	now := time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC)
	e.clock.Set(now)

	due := e.pending(t, orderID)[0]
	ok, err := e.reminders.Claim(ctx, due.ID, "another-sweep", now, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	res, err := e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.SweepResult{}, res, "live claims hide the reminder from other sweeps")
	assert.Equal(t, reminder.StatusPending, e.reload(t, due.ID).Status)

	// after the claim goes stale the reminder is picked up again
	e.clock.Set(now.Add(time.Hour))
	res, err = e.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	e := newEnv(t, day(2025, time.January, 1))
	orderID := scheduledOrder(t, e)
	e.clock.Set(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.sweep.Run(ctx)
	if err != nil {
		// the due query itself may already observe the cancellation
		assert.ErrorIs(t, err, context.Canceled)
		return
	}
	assert.Equal(t, res.Total, res.Skipped)
	assert.Len(t, e.pending(t, orderID), 3)
}
