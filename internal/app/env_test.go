package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/i18n"
	"order_reminder_service/internal/infra/database"
	"order_reminder_service/internal/infra/database/databasetest"
	"order_reminder_service/internal/infra/logger"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type sentMail struct {
	To, Subject, Body string
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	block chan struct{}
	sent  []sentMail
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeSender) Sent() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []reminder.Event
}

func (r *eventRecorder) HandleReminderEvent(_ context.Context, e reminder.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) Types() []reminder.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reminder.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	db        *database.DB
	clock     *clock
	lang      *i18n.Catalog
	reminders *database.ReminderRepository
	orderRepo *database.OrderRepository
	sender    *fakeSender
	events    *eventRecorder

	catalog   *app.IntervalCatalog
	templates *app.TemplateService
	scheduler *app.ReminderScheduler
	lifecycle *app.LifecycleManager
	sweep     *app.DispatchSweep
	orders    *app.OrderService
	holders   *app.HolderService
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	db := databasetest.New(t)
	lang, err := i18n.Load([]string{"en", "es", "fr", "de"}, "en")
	require.NoError(t, err)
	log := logger.Discard()

	e := &env{
		db:        db,
		clock:     &clock{now: now},
		lang:      lang,
		reminders: database.NewReminderRepository(db),
		orderRepo: database.NewOrderRepository(db),
		sender:    &fakeSender{},
		events:    &eventRecorder{},
	}
	types := database.NewOrderTypeRepository(db)
	holders := database.NewHolderRepository(db)

	e.catalog = app.NewIntervalCatalog(database.NewRuleRepository(db), time.Hour, log)
	e.catalog.Now = e.clock.Now
	e.templates = app.NewTemplateService(database.NewTemplateRepository(db), lang, time.Hour, log)
	e.templates.Now = e.clock.Now
	e.scheduler = app.NewReminderScheduler(app.SchedulerDeps{
		Orders:     e.orderRepo,
		Types:      types,
		Holders:    holders,
		Catalog:    e.catalog,
		Templates:  e.templates,
		Reminders:  e.reminders,
		Languages:  lang,
		RenewalURL: "https://shop.example/orders/{order_id}/renew",
	}, log)
	e.scheduler.Now = e.clock.Now
	e.lifecycle = app.NewLifecycleManager(e.reminders, log, e.events)
	e.lifecycle.Now = e.clock.Now
	e.sweep = app.NewDispatchSweep(e.reminders, e.orderRepo, e.lifecycle, e.sender, log,
		app.WithWorkers(3), app.WithSendTimeout(time.Second))
	e.sweep.Now = e.clock.Now
	e.orders = app.NewOrderService(e.orderRepo, types, holders, e.scheduler, e.lifecycle, log)
	e.orders.Now = e.clock.Now
	e.holders = app.NewHolderService(holders, lang, log)
	return e
}

// defaultRules installs pre-expiration rules for 7, 3 and 1 days and English templates.
func (e *env) defaultRules(t *testing.T) {
	t.Helper()
	databasetest.Rule(t, e.db, reminder.DirectionPre, 7, 1)
	databasetest.Rule(t, e.db, reminder.DirectionPre, 3, 2)
	databasetest.Rule(t, e.db, reminder.DirectionPre, 1, 3)
	databasetest.Template(t, e.db, reminder.DirectionPre, "en",
		"{{order_type}} expires on {{expiration_date}}",
		"Hello {{business_name}}, {{interval}} expiration. Renew: {{renewal_link}} {{unknown}}")
}

func (e *env) pending(t *testing.T, orderID int64) []*reminder.Reminder {
	t.Helper()
	rs, err := e.reminders.List(context.Background(), reminder.ListFilter{OrderID: orderID, Status: reminder.StatusPending})
	require.NoError(t, err)
	return rs
}

func (e *env) reload(t *testing.T, id int64) *reminder.Reminder {
	t.Helper()
	r, err := e.reminders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dates(rs []*reminder.Reminder) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ScheduledAt.UTC().Format(time.RFC3339))
	}
	return out
}

// newOrder stores an order directly, bypassing supersession and scheduling.
func (e *env) newOrder(t *testing.T, holder *order.Holder, ot *order.OrderType, applied time.Time) *order.Order {
	t.Helper()
	o := &order.Order{OrderTypeID: ot.ID, HolderID: holder.ID, ApplicationDate: applied, IsActive: true}
	o.Recompute(ot)
	require.NoError(t, e.orderRepo.Create(context.Background(), o))
	return o
}

var errMailbox = errors.New("550 mailbox unavailable")
