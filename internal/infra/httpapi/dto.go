package httpapi

import (
	"database/sql"
	"time"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/domain/template"
)

const dateLayout = "2006-01-02"

// Request payloads

type CreateHolderRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	LanguageCode string `json:"language_code,omitempty"`
}

type UpdateLanguageRequest struct {
	LanguageCode string `json:"language_code"`
}

type CreateOrderTypeRequest struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Policy       string `json:"policy" enum:"fixed_period,calendar_year_end"`
	PeriodMonths int    `json:"period_months,omitempty"`
}

type CreateOrderRequest struct {
	HolderID        int64  `json:"holder_id"`
	OrderTypeID     int64  `json:"order_type_id"`
	ApplicationDate string `json:"application_date" example:"2025-03-15"`
	ExternalRef     string `json:"external_ref,omitempty"`
}

type UpdateOrderRequest struct {
	ApplicationDate *string `json:"application_date,omitempty" example:"2025-03-15"`
	IsActive        *bool   `json:"is_active,omitempty"`
	ExternalRef     *string `json:"external_ref,omitempty"`
}

type ReplaceOrderRequest struct {
	NewOrderID int64 `json:"new_order_id"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type SetStatusRequest struct {
	Status  string `json:"status" example:"sent"`
	Message string `json:"message,omitempty"`
}

type RuleRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Type           string   `json:"type" enum:"pre,post"`
	Days           int      `json:"days"`
	OrderTypeCodes []string `json:"order_type_codes,omitempty"`
	IsActive       *bool    `json:"is_active,omitempty"`
	SortOrder      int      `json:"sort_order,omitempty"`
}

type TemplateRequest struct {
	Name         string `json:"name"`
	Type         string `json:"type" enum:"pre,post"`
	LanguageCode string `json:"language_code"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	IsActive     *bool  `json:"is_active,omitempty"`
}

// Response payloads

type HolderResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	LanguageCode string    `json:"language_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type OrderTypeResponse struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Policy       string `json:"policy"`
	PeriodMonths *int32 `json:"period_months,omitempty"`
	IsActive     bool   `json:"is_active"`
}

type OrderResponse struct {
	ID              int64     `json:"id"`
	HolderID        int64     `json:"holder_id"`
	OrderTypeID     int64     `json:"order_type_id"`
	ExternalRef     *string   `json:"external_ref,omitempty"`
	ApplicationDate string    `json:"application_date"`
	ExpirationDate  string    `json:"expiration_date"`
	IsActive        bool      `json:"is_active"`
	ReplacedBy      *int64    `json:"replaced_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ReminderResponse struct {
	ID           int64      `json:"id"`
	OrderID      int64      `json:"order_id"`
	RuleID       *int64     `json:"rule_id,omitempty"`
	TemplateID   *int64     `json:"template_id,omitempty"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	Recipient    string     `json:"recipient"`
	LanguageCode string     `json:"language_code"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type RuleResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Type           string     `json:"type"`
	Days           int        `json:"days"`
	OrderTypeCodes []string   `json:"order_type_codes"`
	IsDefault      bool       `json:"is_default"`
	IsActive       bool       `json:"is_active"`
	State          string     `json:"state"`
	SortOrder      int        `json:"sort_order"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

type TemplateResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	LanguageCode string    `json:"language_code"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	IsActive     bool      `json:"is_active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PreviewResponse struct {
	TemplateID   int64  `json:"template_id"`
	LanguageCode string `json:"language_code"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
}

type ReplaceResponse struct {
	Old       OrderResponse      `json:"old"`
	New       OrderResponse      `json:"new"`
	Cancelled int                `json:"cancelled"`
	Scheduled []ReminderResponse `json:"scheduled"`
}

type ScheduleResponse struct {
	Scheduled []ReminderResponse `json:"scheduled"`
}

type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}

func holderResponse(h *order.Holder) HolderResponse {
	return HolderResponse{
		ID:           h.ID,
		Name:         h.Name,
		Email:        h.Email,
		LanguageCode: h.LanguageCode,
		CreatedAt:    h.CreatedAt,
		UpdatedAt:    h.UpdatedAt,
	}
}

func orderTypeResponse(t *order.OrderType) OrderTypeResponse {
	resp := OrderTypeResponse{
		ID:       t.ID,
		Code:     t.Code,
		Name:     t.Name,
		Policy:   string(t.Policy),
		IsActive: t.IsActive,
	}
	if t.PeriodMonths.Valid {
		m := t.PeriodMonths.Int32
		resp.PeriodMonths = &m
	}
	return resp
}

func orderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		HolderID:        o.HolderID,
		OrderTypeID:     o.OrderTypeID,
		ExternalRef:     nullString(o.ExternalRef),
		ApplicationDate: o.ApplicationDate.UTC().Format(dateLayout),
		ExpirationDate:  o.ExpirationDate.UTC().Format(dateLayout),
		IsActive:        o.IsActive,
		ReplacedBy:      nullInt(o.ReplacedBy),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func orderResponses(orders []*order.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	return out
}

func reminderResponse(r *reminder.Reminder) ReminderResponse {
	resp := ReminderResponse{
		ID:           r.ID,
		OrderID:      r.OrderID,
		RuleID:       nullInt(r.RuleID),
		TemplateID:   nullInt(r.TemplateID),
		ScheduledAt:  r.ScheduledAt,
		Status:       string(r.Status),
		Recipient:    r.Recipient,
		LanguageCode: r.LanguageCode,
		Subject:      r.Subject,
		Body:         r.Body,
		ErrorMessage: nullString(r.ErrorMessage),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.SentAt.Valid {
		t := r.SentAt.Time
		resp.SentAt = &t
	}
	return resp
}

func reminderResponses(rs []*reminder.Reminder) []ReminderResponse {
	out := make([]ReminderResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, reminderResponse(r))
	}
	return out
}

func ruleResponse(r *reminder.Rule) RuleResponse {
	codes := r.OrderTypeCodes
	if codes == nil {
		codes = []string{}
	}
	resp := RuleResponse{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Type:           string(r.Direction),
		Days:           r.Days,
		OrderTypeCodes: codes,
		IsDefault:      r.IsDefault,
		IsActive:       r.IsActive,
		State:          string(r.State()),
		SortOrder:      r.SortOrder,
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		resp.DeletedAt = &t
	}
	return resp
}

func templateResponse(t *template.Template) TemplateResponse {
	return TemplateResponse{
		ID:           t.ID,
		Name:         t.Name,
		Type:         string(t.Type),
		LanguageCode: t.LanguageCode,
		Subject:      t.Subject,
		Body:         t.Body,
		IsActive:     t.IsActive,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (r RuleRequest) input() app.RuleInput {
	return app.RuleInput{
		Name:           r.Name,
		Description:    r.Description,
		Direction:      reminder.Direction(r.Type),
		Days:           r.Days,
		OrderTypeCodes: r.OrderTypeCodes,
		IsActive:       r.IsActive == nil || *r.IsActive,
		SortOrder:      r.SortOrder,
	}
}

func (r TemplateRequest) input() app.TemplateInput {
	return app.TemplateInput{
		Name:         r.Name,
		Type:         reminder.Direction(r.Type),
		LanguageCode: r.LanguageCode,
		Subject:      r.Subject,
		Body:         r.Body,
		IsActive:     r.IsActive == nil || *r.IsActive,
	}
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
