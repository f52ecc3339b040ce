package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"order_reminder_service/internal/domain/reminder"
)

const reminderColumns = `id, order_id, rule_id, template_id, scheduled_at, status, sent_at, recipient, language_code,
	subject, body, error_message, claim_token, claimed_at, created_at, updated_at`

type ReminderRepository struct {
	db *DB
}

func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

var _ reminder.Repository = (*ReminderRepository)(nil)

func (r *ReminderRepository) Create(ctx context.Context, rem *reminder.Reminder) error {
	now := utc(time.Now())
	if rem.Status == "" {
		rem.Status = reminder.StatusPending
	}
	query := `INSERT INTO reminders (order_id, rule_id, template_id, scheduled_at, status, recipient, language_code,
	              subject, body, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          RETURNING id`
	err := r.db.queryRow(ctx, query, rem.OrderID, rem.RuleID, rem.TemplateID, utc(rem.ScheduledAt), string(rem.Status),
		rem.Recipient, rem.LanguageCode, rem.Subject, rem.Body, now, now).Scan(&rem.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePendingReminder
		}
		return fmt.Errorf("error creating reminder: %w", err)
	}
	rem.CreatedAt, rem.UpdatedAt = now, now
	return nil
}

func (r *ReminderRepository) GetByID(ctx context.Context, id int64) (*reminder.Reminder, error) {
	rem, err := scanReminder(r.db.queryRow(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("error getting reminder by ID: %w", err)
	}
	return rem, nil
}

func (r *ReminderRepository) ExistsPending(ctx context.Context, orderID, ruleID int64) (bool, error) {
	var n int
	err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM reminders WHERE order_id = ? AND rule_id = ? AND status = ?`,
		orderID, ruleID, string(reminder.StatusPending)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("error checking pending reminder: %w", err)
	}
	return n > 0, nil
}

func (r *ReminderRepository) List(ctx context.Context, filter reminder.ListFilter) ([]*reminder.Reminder, error) {
	var (
		where []string
		args  []any
	)
	if filter.OrderID != 0 {
		where = append(where, "order_id = ?")
		args = append(args, filter.OrderID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT ` + reminderColumns + ` FROM reminders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY scheduled_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing reminders: %w", err)
	}
	return scanReminders(rows)
}

func (r *ReminderRepository) CountByStatus(ctx context.Context) (map[reminder.Status]int, error) {
	rows, err := r.db.query(ctx, `SELECT status, COUNT(*) FROM reminders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("error counting reminders: %w", err)
	}
	defer rows.Close()

	counts := make(map[reminder.Status]int, len(reminder.Statuses))
	for _, s := range reminder.Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning reminder count: %w", err)
		}
		counts[reminder.Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *ReminderRepository) ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
	          WHERE status = ? AND scheduled_at <= ? AND (claim_token IS NULL OR claimed_at < ?)
	          ORDER BY scheduled_at, id`
	args := []any{string(reminder.StatusPending), utc(now), utc(staleBefore)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing due reminders: %w", err)
	}
	return scanReminders(rows)
}

func (r *ReminderRepository) Claim(ctx context.Context, id int64, token string, now, staleBefore time.Time) (bool, error) {
	query := `UPDATE reminders SET claim_token = ?, claimed_at = ?, updated_at = ?
	          WHERE id = ? AND status = ? AND (claim_token IS NULL OR claimed_at < ?)`
	res, err := r.db.exec(ctx, query, token, utc(now), utc(now), id, string(reminder.StatusPending), utc(staleBefore))
	if err != nil {
		return false, fmt.Errorf("error claiming reminder %d: %w", id, err)
	}
	return changed(res)
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `UPDATE reminders SET status = ?, sent_at = ?, claim_token = NULL, claimed_at = NULL, updated_at = ?
	          WHERE id = ? AND status = ?`
	res, err := r.db.exec(ctx, query, string(reminder.StatusSent), utc(at), utc(at), id, string(reminder.StatusPending))
	if err != nil {
		return false, fmt.Errorf("error marking reminder %d sent: %w", id, err)
	}
	return changed(res)
}

func (r *ReminderRepository) MarkFailed(ctx context.Context, id int64, message string, at time.Time) (bool, error) {
	return r.finish(ctx, id, reminder.StatusFailed, message, at)
}

func (r *ReminderRepository) Cancel(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	return r.finish(ctx, id, reminder.StatusCancelled, reason, at)
}

func (r *ReminderRepository) CancelAllForOrder(ctx context.Context, orderID int64, reason string, at time.Time) (int, error) {
	query := `UPDATE reminders SET status = ?, error_message = ?, claim_token = NULL, claimed_at = NULL, updated_at = ?
	          WHERE order_id = ? AND status = ?`
	res, err := r.db.exec(ctx, query, string(reminder.StatusCancelled), reason, utc(at), orderID, string(reminder.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("error cancelling reminders of order %d: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return int(n), nil
}

// finish moves a pending reminder to a terminal status carrying a message.
func (r *ReminderRepository) finish(ctx context.Context, id int64, status reminder.Status, message string, at time.Time) (bool, error) {
	query := `UPDATE reminders SET status = ?, error_message = ?, claim_token = NULL, claimed_at = NULL, updated_at = ?
	          WHERE id = ? AND status = ?`
	res, err := r.db.exec(ctx, query, string(status), message, utc(at), id, string(reminder.StatusPending))
	if err != nil {
		return false, fmt.Errorf("error marking reminder %d %s: %w", id, status, err)
	}
	return changed(res)
}

func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n == 1, nil
}

func scanReminder(s rowScanner) (*reminder.Reminder, error) {
	rem := &reminder.Reminder{}
	var status string
	err := s.Scan(&rem.ID, &rem.OrderID, &rem.RuleID, &rem.TemplateID, &rem.ScheduledAt, &status, &rem.SentAt,
		&rem.Recipient, &rem.LanguageCode, &rem.Subject, &rem.Body, &rem.ErrorMessage, &rem.ClaimToken,
		&rem.ClaimedAt, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rem.Status = reminder.Status(status)
	rem.ScheduledAt = rem.ScheduledAt.UTC()
	rem.SentAt = nullUTC(rem.SentAt)
	rem.ClaimedAt = nullUTC(rem.ClaimedAt)
	rem.CreatedAt = rem.CreatedAt.UTC()
	rem.UpdatedAt = rem.UpdatedAt.UTC()
	return rem, nil
}

func scanReminders(rows *sql.Rows) ([]*reminder.Reminder, error) {
	defer rows.Close()
	var out []*reminder.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reminder row: %w", err)
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder rows: %w", err)
	}
	return out, nil
}
