// Package apperr holds the error taxonomy shared by the services and the API layer.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinels carried by PreconditionError so callers can use errors.Is.
var (
	ErrOrderNotSchedulable  = errors.New("order is not schedulable")
	ErrReminderNotPending   = errors.New("reminder is not pending")
	ErrProtectedRule        = errors.New("default interval rule cannot be deleted")
	ErrOrderAlreadyReplaced = errors.New("order is already replaced")

	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PreconditionError means the operation is not allowed in the current state.
type PreconditionError struct {
	Code    string
	Message string
	Err     error
}

func (e *PreconditionError) Error() string { return e.Message }
func (e *PreconditionError) Unwrap() error { return e.Err }

// OrderNotSchedulable is returned by the scheduler for inactive or replaced orders.
func OrderNotSchedulable(orderID int64, reason string) error {
	return &PreconditionError{
		Code:    "order_not_schedulable",
		Message: fmt.Sprintf("order %d cannot be scheduled: %s", orderID, reason),
		Err:     ErrOrderNotSchedulable,
	}
}

func ReminderNotPending(reminderID int64, status string) error {
	return &PreconditionError{
		Code:    "reminder_not_pending",
		Message: fmt.Sprintf("reminder %d is %s, only pending reminders can change state", reminderID, status),
		Err:     ErrReminderNotPending,
	}
}

func ProtectedRule(ruleID int64) error {
	return &PreconditionError{
		Code:    "protected_rule",
		Message: fmt.Sprintf("interval rule %d is a default rule and cannot be deleted", ruleID),
		Err:     ErrProtectedRule,
	}
}

func OrderAlreadyReplaced(orderID, replacedBy int64) error {
	return &PreconditionError{
		Code:    "order_already_replaced",
		Message: fmt.Sprintf("order %d is already replaced by order %d", orderID, replacedBy),
		Err:     ErrOrderAlreadyReplaced,
	}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// TransientError wraps an unexpected dependency failure (store, template lookup, mail).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
