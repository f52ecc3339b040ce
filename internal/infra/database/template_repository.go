package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/domain/template"
)

const templateColumns = `id, name, type, language_code, subject, body, is_active, created_at, updated_at`

type TemplateRepository struct {
	db *DB
}

func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

var _ template.Repository = (*TemplateRepository)(nil)

func (r *TemplateRepository) FindActive(ctx context.Context, direction reminder.Direction, languageCode string) (*template.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM email_templates
	          WHERE type = ? AND language_code = ? AND is_active = TRUE
	          ORDER BY updated_at DESC, id DESC
	          LIMIT 1`
	t, err := scanTemplate(r.db.queryRow(ctx, query, string(direction), languageCode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("error finding active template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *template.Template) error {
	now := utc(time.Now())
	query := `INSERT INTO email_templates (name, type, language_code, subject, body, is_active, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	          RETURNING id`
	err := r.db.queryRow(ctx, query, t.Name, string(t.Type), t.LanguageCode, t.Subject, t.Body, t.IsActive, now, now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("error creating template: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*template.Template, error) {
	t, err := scanTemplate(r.db.queryRow(ctx, `SELECT `+templateColumns+` FROM email_templates WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("error getting template by ID: %w", err)
	}
	return t, nil
}

func (r *TemplateRepository) Update(ctx context.Context, t *template.Template) error {
	now := utc(time.Now())
	query := `UPDATE email_templates
	          SET name = ?, type = ?, language_code = ?, subject = ?, body = ?, is_active = ?, updated_at = ?
	          WHERE id = ?`
	res, err := r.db.exec(ctx, query, t.Name, string(t.Type), t.LanguageCode, t.Subject, t.Body, t.IsActive, now, t.ID)
	if err != nil {
		return fmt.Errorf("error updating template: %w", err)
	}
	if err := expectAffected(res, ErrTemplateNotFound); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// Delete removes the template. Reminders keep only a weak reference, so they are unaffected.
func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.exec(ctx, `DELETE FROM email_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return expectAffected(res, ErrTemplateNotFound)
}

func (r *TemplateRepository) List(ctx context.Context) ([]*template.Template, error) {
	rows, err := r.db.query(ctx, `SELECT `+templateColumns+` FROM email_templates ORDER BY type DESC, language_code, id`)
	if err != nil {
		return nil, fmt.Errorf("error listing templates: %w", err)
	}
	defer rows.Close()

	var out []*template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning template row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTemplate(s rowScanner) (*template.Template, error) {
	t := &template.Template{}
	var typ string
	if err := s.Scan(&t.ID, &t.Name, &typ, &t.LanguageCode, &t.Subject, &t.Body, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Type = reminder.Direction(typ)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
