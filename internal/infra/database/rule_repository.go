package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"order_reminder_service/internal/domain/reminder"
)

const ruleColumns = `id, name, description, direction, days, order_type_codes, is_default, is_active, sort_order,
	created_at, updated_at, deleted_at`

// RuleRepository stores interval rules; order type codes are kept as a JSON array.
type RuleRepository struct {
	db *DB
}

func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{db: db}
}

var _ reminder.RuleRepository = (*RuleRepository)(nil)

func (r *RuleRepository) Create(ctx context.Context, rule *reminder.Rule) error {
	codes, err := encodeCodes(rule.OrderTypeCodes)
	if err != nil {
		return err
	}
	now := utc(time.Now())
	query := `INSERT INTO interval_rules (name, description, direction, days, order_type_codes, is_default, is_active,
	              sort_order, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          RETURNING id`
	err = r.db.queryRow(ctx, query, rule.Name, rule.Description, string(rule.Direction), rule.Days, codes,
		rule.IsDefault, rule.IsActive, rule.SortOrder, now, now).Scan(&rule.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRule
		}
		return fmt.Errorf("error creating interval rule: %w", err)
	}
	rule.CreatedAt, rule.UpdatedAt = now, now
	return nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*reminder.Rule, error) {
	row := r.db.queryRow(ctx, `SELECT `+ruleColumns+` FROM interval_rules WHERE id = ? AND deleted_at IS NULL`, id)
	rule, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("error getting interval rule by ID: %w", err)
	}
	return rule, nil
}

func (r *RuleRepository) Update(ctx context.Context, rule *reminder.Rule) error {
	codes, err := encodeCodes(rule.OrderTypeCodes)
	if err != nil {
		return err
	}
	now := utc(time.Now())
	query := `UPDATE interval_rules
	          SET name = ?, description = ?, direction = ?, days = ?, order_type_codes = ?, is_active = ?,
	              sort_order = ?, updated_at = ?
	          WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.exec(ctx, query, rule.Name, rule.Description, string(rule.Direction), rule.Days, codes,
		rule.IsActive, rule.SortOrder, now, rule.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRule
		}
		return fmt.Errorf("error updating interval rule: %w", err)
	}
	if err := expectAffected(res, ErrRuleNotFound); err != nil {
		return err
	}
	rule.UpdatedAt = now
	return nil
}

func (r *RuleRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.exec(ctx, `UPDATE interval_rules SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		utc(at), utc(at), id)
	if err != nil {
		return fmt.Errorf("error deleting interval rule: %w", err)
	}
	return expectAffected(res, ErrRuleNotFound)
}

func (r *RuleRepository) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	res, err := r.db.exec(ctx, `UPDATE interval_rules SET is_active = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		active, utc(at), id)
	if err != nil {
		return fmt.Errorf("error toggling interval rule: %w", err)
	}
	return expectAffected(res, ErrRuleNotFound)
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]*reminder.Rule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM interval_rules
	    WHERE deleted_at IS NULL AND is_active = TRUE
	    ORDER BY sort_order, created_at, id`)
}

func (r *RuleRepository) ListAll(ctx context.Context, includeDeleted bool) ([]*reminder.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM interval_rules`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	return r.list(ctx, query+` ORDER BY direction DESC, sort_order, created_at, id`)
}

func (r *RuleRepository) ExistsWithDays(ctx context.Context, direction reminder.Direction, days int, excludeID int64) (bool, error) {
	var n int
	err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM interval_rules
	    WHERE direction = ? AND days = ? AND id <> ? AND deleted_at IS NULL`,
		string(direction), days, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("error checking duplicate interval rule: %w", err)
	}
	return n > 0, nil
}

func (r *RuleRepository) list(ctx context.Context, query string) ([]*reminder.Rule, error) {
	rows, err := r.db.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing interval rules: %w", err)
	}
	defer rows.Close()

	var out []*reminder.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning interval rule row: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interval rule rows: %w", err)
	}
	return out, nil
}

func scanRule(s rowScanner) (*reminder.Rule, error) {
	rule := &reminder.Rule{}
	var direction, codes string
	err := s.Scan(&rule.ID, &rule.Name, &rule.Description, &direction, &rule.Days, &codes, &rule.IsDefault,
		&rule.IsActive, &rule.SortOrder, &rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt)
	if err != nil {
		return nil, err
	}
	rule.Direction = reminder.Direction(direction)
	if codes != "" {
		if err := json.Unmarshal([]byte(codes), &rule.OrderTypeCodes); err != nil {
			return nil, fmt.Errorf("decode order type codes of rule %d: %w", rule.ID, err)
		}
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	rule.DeletedAt = nullUTC(rule.DeletedAt)
	return rule, nil
}

func encodeCodes(codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", fmt.Errorf("encode order type codes: %w", err)
	}
	return string(b), nil
}
