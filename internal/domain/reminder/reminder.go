package reminder

import (
	"database/sql"
	"time"
)

// Reminder is a materialized, trackable notification for one order and one interval rule.
// Subject and Body are rendered when the reminder is scheduled and never regenerated.
type Reminder struct {
	ID           int64
	OrderID      int64
	RuleID       sql.NullInt64 // Audit-only reference, no foreign key
	TemplateID   sql.NullInt64 // Audit-only reference, no foreign key
	ScheduledAt  time.Time
	Status       Status
	SentAt       sql.NullTime
	Recipient    string
	LanguageCode string
	Subject      string
	Body         string
	ErrorMessage sql.NullString
	ClaimToken   sql.NullString // In-flight marker held by a dispatch worker
	ClaimedAt    sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListFilter narrows reminder listings. Zero values mean "any".
type ListFilter struct {
	OrderID int64
	Status  Status
	Limit   int
}
