package app

import (
	"context"
	"fmt"
	"time"

	"order_reminder_service/internal/domain/reminder"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// Status is a point-in-time overview of the reminder pipeline.
type Status struct {
	Counts      map[reminder.Status]int `json:"counts"`
	Due         int                     `json:"due"`
	ActiveRules int                     `json:"active_rules"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// AdminService backs the operator surfaces (admin bot, CLI status).
type AdminService struct {
	reminders       reminder.Repository
	catalog         *IntervalCatalog
	sweep           *DispatchSweep
	adminTelegramID int64
	Now             func() time.Time
}

func NewAdminService(reminders reminder.Repository, catalog *IntervalCatalog, sweep *DispatchSweep, adminID int64) *AdminService {
	return &AdminService{
		reminders:       reminders,
		catalog:         catalog,
		sweep:           sweep,
		adminTelegramID: adminID,
		Now:             time.Now,
	}
}

// IsAdmin reports whether a Telegram user may run admin commands.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

func (s *AdminService) Status(ctx context.Context) (*Status, error) {
	counts, err := s.reminders.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count reminders by status: %w", err)
	}
	now := s.Now()
	due, err := s.sweep.DueReminders(ctx, now, 0)
	if err != nil {
		return nil, err
	}
	rules, err := s.catalog.List(ctx, false)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, r := range rules {
		if r.IsActive {
			active++
		}
	}
	return &Status{Counts: counts, Due: len(due), ActiveRules: active, GeneratedAt: now}, nil
}

// TriggerSweep runs one dispatch pass on behalf of an admin.
func (s *AdminService) TriggerSweep(ctx context.Context, performingAdminID int64) (SweepResult, error) {
	if !s.IsAdmin(performingAdminID) {
		return SweepResult{}, ErrAdminNotAuthorized
	}
	return s.sweep.Run(ctx)
}
