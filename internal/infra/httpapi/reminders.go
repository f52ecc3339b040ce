package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/reminder"
)

const manualCancelReason = "Cancelled manually"

func (s *server) registerReminders(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-reminders",
		Method:      http.MethodGet,
		Path:        "/reminders",
		Summary:     "List reminders",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		Status  string `query:"status" doc:"pending, sent, failed or cancelled"`
		OrderID int64  `query:"order_id"`
		Limit   int    `query:"limit" default:"100" minimum:"1" maximum:"1000"`
	}) (*response[[]ReminderResponse], error) {
		rs, err := s.svc.Lifecycle.List(ctx, reminder.ListFilter{
			OrderID: in.OrderID,
			Status:  reminder.Status(strings.ToLower(in.Status)),
			Limit:   in.Limit,
		})
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(reminderResponses(rs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "order-reminders",
		Method:      http.MethodGet,
		Path:        "/orders/{id}/reminders",
		Summary:     "List an order's reminders",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idPath) (*response[[]ReminderResponse], error) {
		if _, err := s.svc.Orders.Get(ctx, in.ID); err != nil {
			return nil, s.fail(ctx, err)
		}
		rs, err := s.svc.Lifecycle.List(ctx, reminder.ListFilter{OrderID: in.ID})
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(reminderResponses(rs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "schedule-order-reminders",
		Method:      http.MethodPost,
		Path:        "/orders/{id}/reminders/schedule",
		Summary:     "Schedule reminders for an order",
		Description: "Idempotent: rules that already have a pending reminder are skipped.",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, in *idPath) (*response[ScheduleResponse], error) {
		rs, err := s.svc.Scheduler.ScheduleByID(ctx, in.ID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(ScheduleResponse{Scheduled: reminderResponses(rs)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-order-reminders",
		Method:      http.MethodPost,
		Path:        "/orders/{id}/reminders/cancel",
		Summary:     "Cancel an order's pending reminders",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		ID   int64          `path:"id"`
		Body *CancelRequest `required:"false"`
	}) (*response[CancelResponse], error) {
		if _, err := s.svc.Orders.Get(ctx, in.ID); err != nil {
			return nil, s.fail(ctx, err)
		}
		n, err := s.svc.Lifecycle.CancelAllForOrder(ctx, in.ID, cancelReason(in.Body))
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(CancelResponse{Cancelled: n}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-reminder",
		Method:      http.MethodPost,
		Path:        "/reminders/{id}/cancel",
		Summary:     "Cancel a pending reminder",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, in *struct {
		ID   int64          `path:"id"`
		Body *CancelRequest `required:"false"`
	}) (*response[ReminderResponse], error) {
		r, err := s.svc.Lifecycle.CancelByID(ctx, in.ID, cancelReason(in.Body))
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(reminderResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-reminder-status",
		Method:      http.MethodPost,
		Path:        "/reminders/{id}/status",
		Summary:     "Move a pending reminder to a terminal status",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		ID   int64 `path:"id"`
		Body SetStatusRequest
	}) (*response[ReminderResponse], error) {
		status := reminder.Status(strings.ToLower(strings.TrimSpace(in.Body.Status)))
		r, err := s.svc.Lifecycle.SetStatus(ctx, in.ID, status, in.Body.Message)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(reminderResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-sweep",
		Method:      http.MethodPost,
		Path:        "/reminders/sweep",
		Summary:     "Dispatch due reminders now",
	}, func(ctx context.Context, _ *struct{}) (*response[app.SweepResult], error) {
		res, err := s.svc.Sweep.Run(ctx)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(res), nil
	})
}

func cancelReason(req *CancelRequest) string {
	if req == nil || strings.TrimSpace(req.Reason) == "" {
		return manualCancelReason
	}
	return strings.TrimSpace(req.Reason)
}
