package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/telebot.v3"

	"order_reminder_service/internal/infra/config"
	"order_reminder_service/internal/infra/httpapi"
	"order_reminder_service/internal/infra/logger"
	"order_reminder_service/internal/infra/scheduler"
	"order_reminder_service/internal/infra/telegram"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the periodic dispatch sweep and the optional admin bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), serve)
		},
	}
	cmd.Flags().String("http-addr", "", "listen address (default :8080)")
	cmd.Flags().String("cron", "", "dispatch sweep cron spec (default */5 * * * *)")
	_ = viper.BindPFlag(config.ViperKey(config.KeyHTTPAddr), cmd.Flags().Lookup("http-addr"))
	_ = viper.BindPFlag(config.ViperKey(config.KeyCronSpecSweep), cmd.Flags().Lookup("cron"))
	return cmd
}

func serve(ctx context.Context, a *application) error {
	cfg := a.cfg
	a.log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"http_addr":   cfg.HTTPAddr,
		"sweep_cron":  cfg.CronSpecSweep,
	}).Info("Order reminder service starting...")

	var bot *telebot.Bot
	if cfg.TelegramEnabled() {
		b, err := telegram.NewBot(cfg.TelegramToken, logger.Component("telegram"))
		if err != nil {
			return err
		}
		bot = b
		a.lifecycle.Subscribe(telegram.NewAlertListener(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, logger.Component("telegram")))
		telegram.RegisterBotCommands(bot, a.admin, logger.Component("telegram"))
		telegram.RegisterAdminHandlers(ctx, bot, a.admin, logger.Component("telegram"))
		a.log.Info("Telegram admin bot handlers registered.")
	}

	// A sweep must finish before its claims expire.
	sweeps := scheduler.NewSweepScheduler(a.sweep, logger.Component("scheduler"), cfg.CronSpecSweep, cfg.SweepClaimTTL)
	if err := sweeps.Start(); err != nil {
		return err
	}

	handler, err := httpapi.New(httpapi.Config{
		Services: a.httpServices(),
		Auth:     httpapi.AuthConfig{JWTSecret: cfg.APIJWTSecret},
		Logger:   logger.Component("http"),
		Health:   a.db.HealthCheck,
	})
	if err != nil {
		sweeps.Stop()
		return err
	}
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if bot != nil {
		// Start blocks until Stop is called
		go bot.Start()
	}
	a.log.WithField("addr", cfg.HTTPAddr).Info("Application setup complete. API, scheduler and bot are running.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		a.log.WithField("signal", sig.String()).Info("Shutting down application...")
	case runErr = <-serveErr:
		a.log.WithError(runErr).Error("HTTP server stopped unexpectedly")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if bot != nil {
		bot.Stop()
	}
	sweeps.Stop()
	a.log.Info("Application shut down gracefully.")
	return runErr
}
