// Package template models localized email templates and their placeholder rendering.
package template

import (
	"context"
	"regexp"
	"time"

	"order_reminder_service/internal/domain/reminder"
)

// Template is an email subject/body pair for one reminder direction and language.
type Template struct {
	ID           int64
	Name         string
	Type         reminder.Direction
	LanguageCode string
	Subject      string
	Body         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Placeholder names understood by the scheduler.
const (
	KeyBusinessName   = "business_name"
	KeyHolderName     = "holder_name"
	KeyOrderType      = "order_type"
	KeyOrderCode      = "order_code"
	KeyExpirationDate = "expiration_date"
	KeyInterval       = "interval"
	KeyRenewalLink    = "renewal_link"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{key}} placeholders in subject and body. Unknown keys are left untouched.
func (t *Template) Render(data map[string]string) (subject, body string) {
	return Substitute(t.Subject, data), Substitute(t.Body, data)
}

// Substitute replaces {{key}} occurrences in s with data[key].
func Substitute(s string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := data[key]; ok {
			return v
		}
		return match
	})
}

// Repository defines persistence for templates.
type Repository interface {
	// FindActive returns the newest active template for (direction, language).
	FindActive(ctx context.Context, direction reminder.Direction, languageCode string) (*Template, error)
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id int64) (*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Template, error)
}
