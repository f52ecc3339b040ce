package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/domain/apperr"
)

const internalErrorMessage = "something went wrong, try again later"

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"invalid days: must be at least 1"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope of every non-2xx response.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps application errors onto the API envelope. Unexpected errors are logged
// with full context and reported with a generic message.
func handleError(ctx context.Context, log *logrus.Entry, err error) error {
	if err == nil {
		return nil
	}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(),
			map[string]any{"field": ve.Field, "reason": ve.Message})
	}
	var pe *apperr.PreconditionError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusConflict, "precondition_failed", pe.Message, map[string]any{"reason": pe.Code})
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}

	entry := log.WithError(err)
	if id := requestIDFrom(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	if sub := subjectFrom(ctx); sub != "" {
		entry = entry.WithField("subject", sub)
	}
	var te *apperr.TransientError
	if errors.As(err, &te) {
		entry = entry.WithField("op", te.Op)
	}
	entry.Error("Request failed")
	return newAPIError(http.StatusInternalServerError, "internal_error", internalErrorMessage, nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "precondition_failed"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
