package order

import "time"

// Holder is the customer an order belongs to and the recipient of its reminders.
type Holder struct {
	ID           int64
	Name         string // Business name rendered into reminders
	Email        string
	LanguageCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
