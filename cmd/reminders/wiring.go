package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/i18n"
	"order_reminder_service/internal/infra/config"
	"order_reminder_service/internal/infra/database"
	"order_reminder_service/internal/infra/httpapi"
	"order_reminder_service/internal/infra/logger"
	"order_reminder_service/internal/infra/mail"
)

// application holds the wired services of one process.
type application struct {
	cfg  *config.AppConfig
	db   *database.DB
	log  *logrus.Entry
	lang *i18n.Catalog

	catalog   *app.IntervalCatalog
	templates *app.TemplateService
	scheduler *app.ReminderScheduler
	lifecycle *app.LifecycleManager
	sweep     *app.DispatchSweep
	orders    *app.OrderService
	holders   *app.HolderService
	admin     *app.AdminService
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.Environment)
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *config.AppConfig, migrate bool) (*database.DB, error) {
	log := logger.Component("database")
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	log.WithField("driver", cfg.DatabaseDriver).Info("Database connection established.")
	if migrate {
		n, err := database.Migrate(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		if n > 0 {
			log.WithField("applied", n).Info("Migrations applied.")
		}
	}
	return db, nil
}

func newApplication(ctx context.Context, cfg *config.AppConfig) (*application, error) {
	db, err := openDatabase(ctx, cfg, true)
	if err != nil {
		return nil, err
	}
	lang, err := i18n.Load(cfg.SupportedLanguages, cfg.DefaultLanguage)
	if err != nil {
		db.Close()
		return nil, err
	}
	sender, err := mail.New(cfg, logger.Component("mail"))
	if err != nil {
		db.Close()
		return nil, err
	}

	reminders := database.NewReminderRepository(db)
	orders := database.NewOrderRepository(db)
	types := database.NewOrderTypeRepository(db)
	holders := database.NewHolderRepository(db)

	base := logrus.NewEntry(logger.Log)
	a := &application{cfg: cfg, db: db, log: logger.Component("main"), lang: lang}
	a.catalog = app.NewIntervalCatalog(database.NewRuleRepository(db), cfg.CatalogCacheTTL, base)
	a.templates = app.NewTemplateService(database.NewTemplateRepository(db), lang, cfg.CatalogCacheTTL, base)
	a.scheduler = app.NewReminderScheduler(app.SchedulerDeps{
		Orders:     orders,
		Types:      types,
		Holders:    holders,
		Catalog:    a.catalog,
		Templates:  a.templates,
		Reminders:  reminders,
		Languages:  lang,
		RenewalURL: cfg.RenewalURLTemplate,
	}, base)
	a.lifecycle = app.NewLifecycleManager(reminders, base, app.NewAuditListener(base))
	a.sweep = app.NewDispatchSweep(reminders, orders, a.lifecycle, sender, base,
		app.WithWorkers(cfg.SweepWorkers),
		app.WithBatchSize(cfg.SweepBatchSize),
		app.WithClaimTTL(cfg.SweepClaimTTL),
		app.WithSendTimeout(cfg.MailSendTimeout),
	)
	a.orders = app.NewOrderService(orders, types, holders, a.scheduler, a.lifecycle, base)
	a.holders = app.NewHolderService(holders, lang, base)
	a.admin = app.NewAdminService(reminders, a.catalog, a.sweep, cfg.AdminTelegramID)
	return a, nil
}

func (a *application) httpServices() httpapi.Services {
	return httpapi.Services{
		Orders:    a.orders,
		Holders:   a.holders,
		Scheduler: a.scheduler,
		Lifecycle: a.lifecycle,
		Sweep:     a.sweep,
		Catalog:   a.catalog,
		Templates: a.templates,
		Languages: a.lang,
	}
}

func (a *application) Close() error {
	return a.db.Close()
}

// withApp loads configuration, wires the services and runs fn.
func withApp(ctx context.Context, fn func(context.Context, *application) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
