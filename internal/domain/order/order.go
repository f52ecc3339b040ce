// internal/domain/order/order.go
package order

import (
	"database/sql"
	"time"
)

// Order is a time-bounded entitlement held by a Holder.
// Corresponds to the 'orders' table.
type Order struct {
	ID              int64
	OrderTypeID     int64          // Foreign key to order_types.id
	HolderID        int64          // Foreign key to holders.id
	ExternalRef     sql.NullString // Reference in the upstream ordering system, optional
	ApplicationDate time.Time
	ExpirationDate  time.Time // Only ever set through CalculateExpiration
	IsActive        bool
	ReplacedBy      sql.NullInt64 // Single forward pointer to the superseding order
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsReplaced reports whether another order has superseded this one.
func (o *Order) IsReplaced() bool {
	return o.ReplacedBy.Valid
}

// NotSchedulableReason returns a non-empty reason when reminders must not be scheduled for the order.
func (o *Order) NotSchedulableReason() string {
	switch {
	case o.IsReplaced():
		return "order has been replaced"
	case !o.IsActive:
		return "order is inactive"
	default:
		return ""
	}
}

// Recompute derives the expiration date again from the order type policy.
func (o *Order) Recompute(t *OrderType) {
	o.ExpirationDate = CalculateExpiration(t, o.ApplicationDate)
}
