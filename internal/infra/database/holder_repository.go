package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order_reminder_service/internal/domain/order"
)

type HolderRepository struct {
	db *DB
}

func NewHolderRepository(db *DB) *HolderRepository {
	return &HolderRepository{db: db}
}

var _ order.HolderRepository = (*HolderRepository)(nil)

func (r *HolderRepository) Create(ctx context.Context, h *order.Holder) error {
	now := utc(time.Now())
	query := `INSERT INTO holders (name, email, language_code, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?)
	          RETURNING id`
	if err := r.db.queryRow(ctx, query, h.Name, h.Email, h.LanguageCode, now, now).Scan(&h.ID); err != nil {
		return fmt.Errorf("error creating holder: %w", err)
	}
	h.CreatedAt, h.UpdatedAt = now, now
	return nil
}

func (r *HolderRepository) GetByID(ctx context.Context, id int64) (*order.Holder, error) {
	query := `SELECT id, name, email, language_code, created_at, updated_at FROM holders WHERE id = ?`
	h := &order.Holder{}
	err := r.db.queryRow(ctx, query, id).Scan(&h.ID, &h.Name, &h.Email, &h.LanguageCode, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHolderNotFound
		}
		return nil, fmt.Errorf("error getting holder by ID: %w", err)
	}
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	return h, nil
}

func (r *HolderRepository) UpdateLanguage(ctx context.Context, id int64, languageCode string) error {
	res, err := r.db.exec(ctx, `UPDATE holders SET language_code = ?, updated_at = ? WHERE id = ?`,
		languageCode, utc(time.Now()), id)
	if err != nil {
		return fmt.Errorf("error updating holder language: %w", err)
	}
	return expectAffected(res, ErrHolderNotFound)
}
