package order

import (
	"context"
	"time"
)

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	// Update persists application date, expiration date, activity flag and external reference.
	Update(ctx context.Context, o *Order) error
	// SetReplacedBy stores the forward pointer; it is the first step of supersession.
	SetReplacedBy(ctx context.Context, id, replacedBy int64) error
	// ListActiveForHolder returns active, unreplaced orders of a holder for one order type.
	ListActiveForHolder(ctx context.Context, holderID, orderTypeID int64) ([]*Order, error)
	// ListExpiringBetween returns active, unreplaced orders whose expiration falls in [from, to].
	// orderTypeID 0 means any type.
	ListExpiringBetween(ctx context.Context, from, to time.Time, orderTypeID int64) ([]*Order, error)
}

// TypeRepository defines persistence operations for order types.
type TypeRepository interface {
	Create(ctx context.Context, t *OrderType) error
	GetByID(ctx context.Context, id int64) (*OrderType, error)
	GetByCode(ctx context.Context, code string) (*OrderType, error)
	List(ctx context.Context) ([]*OrderType, error)
}

// HolderRepository defines persistence operations for holders.
type HolderRepository interface {
	Create(ctx context.Context, h *Holder) error
	GetByID(ctx context.Context, id int64) (*Holder, error)
	UpdateLanguage(ctx context.Context, id int64, languageCode string) error
}
