package order

import (
	"database/sql"
	"time"
)

// ExpirationPolicy selects how an order's expiration date is derived.
type ExpirationPolicy string

const (
	PolicyFixedPeriod     ExpirationPolicy = "fixed_period"      // application date + N months
	PolicyCalendarYearEnd ExpirationPolicy = "calendar_year_end" // Dec 31 of the application year
)

// DefaultPeriodMonths applies to fixed_period types without a configured period and to unknown policies.
const DefaultPeriodMonths = 12

// Valid reports whether p is one of the known policies.
func (p ExpirationPolicy) Valid() bool {
	return p == PolicyFixedPeriod || p == PolicyCalendarYearEnd
}

// OrderType is the policy for computing an order's expiration.
type OrderType struct {
	ID           int64
	Code         string // Unique; matched against interval rule allow-lists
	Name         string
	Policy       ExpirationPolicy
	PeriodMonths sql.NullInt32
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Months returns the effective period of a fixed_period type.
func (t *OrderType) Months() int {
	if t.PeriodMonths.Valid && t.PeriodMonths.Int32 > 0 {
		return int(t.PeriodMonths.Int32)
	}
	return DefaultPeriodMonths
}
