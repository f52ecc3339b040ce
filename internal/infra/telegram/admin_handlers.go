package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/reminder"
)

const unauthorizedReply = "Error: you are not allowed to run this command."

// AdminCommands is what the admin handlers need from the application layer.
type AdminCommands interface {
	IsAdmin(telegramID int64) bool
	Status(ctx context.Context) (*app.Status, error)
	TriggerSweep(ctx context.Context, performingAdminID int64) (app.SweepResult, error)
}

// RegisterAdminHandlers wires /status and /sweep.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService AdminCommands, baseLogger *logrus.Entry) {
	b.Handle("/status", statusHandler(ctx, adminService, baseLogger))
	b.Handle("/sweep", sweepHandler(ctx, adminService, baseLogger))
}

func statusHandler(ctx context.Context, adminService AdminCommands, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/status",
			"sender_id": c.Sender().ID,
		})
		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		st, err := adminService.Status(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to build status")
			return c.Send("Could not read the reminder status, try again later.")
		}
		return c.Send(formatStatus(st))
	}
}

func sweepHandler(ctx context.Context, adminService AdminCommands, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sweep",
			"sender_id": c.Sender().ID,
		})

		res, err := adminService.TriggerSweep(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			}
			handlerLogger.WithError(err).Error("Manual sweep failed")
			return c.Send(fmt.Sprintf("Sweep failed: %s", err.Error()))
		}
		handlerLogger.WithField("total", res.Total).Info("Manual sweep finished")
		return c.Send(fmt.Sprintf("Sweep finished: %d due, %d sent, %d failed, %d cancelled, %d skipped.",
			res.Total, res.Sent, res.Failed, res.Cancelled, res.Skipped))
	}
}

func formatStatus(st *app.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reminder status at %s\n", st.GeneratedAt.UTC().Format(time.RFC3339))

	statuses := make([]string, 0, len(st.Counts))
	for s := range st.Counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "%s: %d\n", s, st.Counts[reminder.Status(s)])
	}
	fmt.Fprintf(&b, "Due now: %d\n", st.Due)
	fmt.Fprintf(&b, "Active interval rules: %d", st.ActiveRules)
	return b.String()
}
