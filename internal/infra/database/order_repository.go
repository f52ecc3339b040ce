package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order_reminder_service/internal/domain/order"
)

const orderColumns = `id, order_type_id, holder_id, external_ref, application_date, expiration_date,
	is_active, replaced_by, created_at, updated_at`

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	now := utc(time.Now())
	query := `INSERT INTO orders (order_type_id, holder_id, external_ref, application_date, expiration_date,
	              is_active, replaced_by, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	          RETURNING id`
	err := r.db.queryRow(ctx, query,
		o.OrderTypeID, o.HolderID, o.ExternalRef, utc(o.ApplicationDate), utc(o.ExpirationDate),
		o.IsActive, o.ReplacedBy, now, now,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("error creating order: %w", err)
	}
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	row := r.db.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("error getting order by ID: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	now := utc(time.Now())
	query := `UPDATE orders
	          SET application_date = ?, expiration_date = ?, is_active = ?, external_ref = ?, updated_at = ?
	          WHERE id = ?`
	res, err := r.db.exec(ctx, query, utc(o.ApplicationDate), utc(o.ExpirationDate), o.IsActive, o.ExternalRef, now, o.ID)
	if err != nil {
		return fmt.Errorf("error updating order: %w", err)
	}
	if err := expectAffected(res, ErrOrderNotFound); err != nil {
		return err
	}
	o.UpdatedAt = now
	return nil
}

// SetReplacedBy writes the forward pointer only while it is still empty. An order that already
// has a replacement yields ErrOrderAlreadyReplaced.
func (r *OrderRepository) SetReplacedBy(ctx context.Context, id, replacedBy int64) error {
	res, err := r.db.exec(ctx, `UPDATE orders SET replaced_by = ?, updated_at = ? WHERE id = ? AND replaced_by IS NULL`,
		replacedBy, utc(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error setting replacement of order %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrOrderAlreadyReplaced
}

func (r *OrderRepository) ListActiveForHolder(ctx context.Context, holderID, orderTypeID int64) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE holder_id = ? AND order_type_id = ? AND is_active = TRUE AND replaced_by IS NULL
	          ORDER BY id`
	rows, err := r.db.query(ctx, query, holderID, orderTypeID)
	if err != nil {
		return nil, fmt.Errorf("error listing active orders for holder %d: %w", holderID, err)
	}
	return scanOrders(rows)
}

func (r *OrderRepository) ListExpiringBetween(ctx context.Context, from, to time.Time, orderTypeID int64) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE is_active = TRUE AND replaced_by IS NULL AND expiration_date >= ? AND expiration_date <= ?`
	args := []any{utc(from), utc(to)}
	if orderTypeID != 0 {
		query += ` AND order_type_id = ?`
		args = append(args, orderTypeID)
	}
	query += ` ORDER BY expiration_date, id`
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing orders by expiration: %w", err)
	}
	return scanOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*order.Order, error) {
	o := &order.Order{}
	err := s.Scan(&o.ID, &o.OrderTypeID, &o.HolderID, &o.ExternalRef, &o.ApplicationDate, &o.ExpirationDate,
		&o.IsActive, &o.ReplacedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.ApplicationDate = o.ApplicationDate.UTC()
	o.ExpirationDate = o.ExpirationDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func scanOrders(rows *sql.Rows) ([]*order.Order, error) {
	defer rows.Close()
	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning order row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return out, nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
