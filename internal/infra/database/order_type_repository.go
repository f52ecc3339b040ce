package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order_reminder_service/internal/domain/order"
)

const orderTypeColumns = `id, code, name, expiration_policy, period_months, is_active, created_at, updated_at`

type OrderTypeRepository struct {
	db *DB
}

func NewOrderTypeRepository(db *DB) *OrderTypeRepository {
	return &OrderTypeRepository{db: db}
}

var _ order.TypeRepository = (*OrderTypeRepository)(nil)

func (r *OrderTypeRepository) Create(ctx context.Context, t *order.OrderType) error {
	now := utc(time.Now())
	query := `INSERT INTO order_types (code, name, expiration_policy, period_months, is_active, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          RETURNING id`
	err := r.db.queryRow(ctx, query, t.Code, t.Name, string(t.Policy), t.PeriodMonths, t.IsActive, now, now).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrderTypeCode
		}
		return fmt.Errorf("error creating order type: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

func (r *OrderTypeRepository) GetByID(ctx context.Context, id int64) (*order.OrderType, error) {
	return r.getOne(ctx, `SELECT `+orderTypeColumns+` FROM order_types WHERE id = ?`, id)
}

func (r *OrderTypeRepository) GetByCode(ctx context.Context, code string) (*order.OrderType, error) {
	return r.getOne(ctx, `SELECT `+orderTypeColumns+` FROM order_types WHERE code = ?`, code)
}

func (r *OrderTypeRepository) List(ctx context.Context) ([]*order.OrderType, error) {
	rows, err := r.db.query(ctx, `SELECT `+orderTypeColumns+` FROM order_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("error listing order types: %w", err)
	}
	defer rows.Close()

	var out []*order.OrderType
	for rows.Next() {
		t, err := scanOrderType(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning order type row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *OrderTypeRepository) getOne(ctx context.Context, query string, arg any) (*order.OrderType, error) {
	t, err := scanOrderType(r.db.queryRow(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderTypeNotFound
		}
		return nil, fmt.Errorf("error getting order type: %w", err)
	}
	return t, nil
}

func scanOrderType(s rowScanner) (*order.OrderType, error) {
	t := &order.OrderType{}
	var policy string
	if err := s.Scan(&t.ID, &t.Code, &t.Name, &policy, &t.PeriodMonths, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Policy = order.ExpirationPolicy(policy)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
