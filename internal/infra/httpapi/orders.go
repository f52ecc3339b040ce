package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/order"
)

func (s *server) registerHolders(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-holder",
		Method:        http.MethodPost,
		Path:          "/holders",
		Summary:       "Create holder",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		Body CreateHolderRequest
	}) (*response[HolderResponse], error) {
		h, err := s.svc.Holders.Create(ctx, app.HolderInput{
			Name:         in.Body.Name,
			Email:        in.Body.Email,
			LanguageCode: in.Body.LanguageCode,
		})
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(holderResponse(h)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-holder",
		Method:      http.MethodGet,
		Path:        "/holders/{id}",
		Summary:     "Get holder",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idPath) (*response[HolderResponse], error) {
		h, err := s.svc.Holders.Get(ctx, in.ID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(holderResponse(h)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-holder-language",
		Method:      http.MethodPut,
		Path:        "/holders/{id}/language",
		Summary:     "Update holder language preference",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		ID   int64 `path:"id"`
		Body UpdateLanguageRequest
	}) (*response[HolderResponse], error) {
		h, err := s.svc.Holders.UpdateLanguage(ctx, in.ID, in.Body.LanguageCode)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(holderResponse(h)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-languages",
		Method:      http.MethodGet,
		Path:        "/languages",
		Summary:     "Supported languages",
	}, func(ctx context.Context, _ *struct{}) (*response[[]app.Language], error) {
		return respond(s.svc.Holders.Languages()), nil
	})
}

func (s *server) registerOrderTypes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-order-types",
		Method:      http.MethodGet,
		Path:        "/order-types",
		Summary:     "List order types",
	}, func(ctx context.Context, _ *struct{}) (*response[[]OrderTypeResponse], error) {
		types, err := s.svc.Orders.ListOrderTypes(ctx)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		out := make([]OrderTypeResponse, 0, len(types))
		for _, t := range types {
			out = append(out, orderTypeResponse(t))
		}
		return respond(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-order-type",
		Method:        http.MethodPost,
		Path:          "/order-types",
		Summary:       "Create order type",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		Body CreateOrderTypeRequest
	}) (*response[OrderTypeResponse], error) {
		t, err := s.svc.Orders.CreateOrderType(ctx, app.OrderTypeInput{
			Code:         in.Body.Code,
			Name:         in.Body.Name,
			Policy:       order.ExpirationPolicy(in.Body.Policy),
			PeriodMonths: in.Body.PeriodMonths,
		})
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(orderTypeResponse(t)), nil
	})
}

type windowQuery struct {
	Days   int   `query:"days" default:"30" doc:"Window size in days"`
	TypeID int64 `query:"type_id" doc:"Restrict to one order type"`
}

func (s *server) registerOrders(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        http.MethodPost,
		Path:          "/orders",
		Summary:       "Create order",
		Description:   "Creates the order, supersedes the holder's previous order of the same type and schedules reminders.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		Body CreateOrderRequest
	}) (*response[OrderResponse], error) {
		applied, err := parseDate("application_date", in.Body.ApplicationDate)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		o, err := s.svc.Orders.Create(ctx, app.OrderInput{
			HolderID:        in.Body.HolderID,
			OrderTypeID:     in.Body.OrderTypeID,
			ApplicationDate: applied,
			ExternalRef:     in.Body.ExternalRef,
		})
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(orderResponse(o)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "orders-expiring",
		Method:      http.MethodGet,
		Path:        "/orders/expiring",
		Summary:     "Orders expiring within N days",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *windowQuery) (*response[[]OrderResponse], error) {
		orders, err := s.svc.Orders.ExpiringWithin(ctx, in.Days, in.TypeID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(orderResponses(orders)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "orders-expired",
		Method:      http.MethodGet,
		Path:        "/orders/expired",
		Summary:     "Orders expired within the last N days",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *windowQuery) (*response[[]OrderResponse], error) {
		orders, err := s.svc.Orders.ExpiredWithin(ctx, in.Days, in.TypeID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(orderResponses(orders)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{id}",
		Summary:     "Get order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idPath) (*response[OrderResponse], error) {
		o, err := s.svc.Orders.Get(ctx, in.ID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(orderResponse(o)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-order",
		Method:      http.MethodPatch,
		Path:        "/orders/{id}",
		Summary:     "Update order",
		Description: "Deactivation cancels pending reminders; an application date change reschedules them.",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		ID   int64 `path:"id"`
		Body UpdateOrderRequest
	}) (*response[OrderResponse], error) {
		upd := app.OrderUpdate{IsActive: in.Body.IsActive, ExternalRef: in.Body.ExternalRef}
		if in.Body.ApplicationDate != nil {
			applied, err := parseDate("application_date", *in.Body.ApplicationDate)
			if err != nil {
				return nil, s.fail(ctx, err)
			}
			upd.ApplicationDate = &applied
		}
		o, err := s.svc.Orders.Update(ctx, in.ID, upd)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(orderResponse(o)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "replace-order",
		Method:      http.MethodPost,
		Path:        "/orders/{id}/replace",
		Summary:     "Replace order",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, in *struct {
		ID   int64 `path:"id"`
		Body ReplaceOrderRequest
	}) (*response[ReplaceResponse], error) {
		res, err := s.svc.Orders.Replace(ctx, in.ID, in.Body.NewOrderID)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		return respond(ReplaceResponse{
			Old:       orderResponse(res.Old),
			New:       orderResponse(res.New),
			Cancelled: res.Cancelled,
			Scheduled: reminderResponses(res.Scheduled),
		}), nil
	})
}
