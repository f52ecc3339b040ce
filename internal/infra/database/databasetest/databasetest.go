// Package databasetest opens migrated sqlite databases and inserts fixtures for tests.
package databasetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/domain/template"
	"order_reminder_service/internal/infra/database"
)

// New returns a freshly migrated sqlite database under t.TempDir().
func New(t testing.TB) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite", "file:"+filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err, "open db")
	t.Cleanup(func() { db.Close() })

	_, err = database.Migrate(ctx, db)
	require.NoError(t, err, "migrate")
	return db
}

func Holder(t testing.TB, db *database.DB, name, language string) *order.Holder {
	t.Helper()
	h := &order.Holder{Name: name, Email: "billing@" + sanitize(name) + ".example", LanguageCode: language}
	require.NoError(t, database.NewHolderRepository(db).Create(context.Background(), h))
	return h
}

func FixedPeriodType(t testing.TB, db *database.DB, code string, months int32) *order.OrderType {
	t.Helper()
	ot := &order.OrderType{
		Code:         code,
		Name:         code + " license",
		Policy:       order.PolicyFixedPeriod,
		PeriodMonths: sql.NullInt32{Int32: months, Valid: months > 0},
		IsActive:     true,
	}
	require.NoError(t, database.NewOrderTypeRepository(db).Create(context.Background(), ot))
	return ot
}

func Rule(t testing.TB, db *database.DB, direction reminder.Direction, days, sortOrder int, codes ...string) *reminder.Rule {
	t.Helper()
	r := &reminder.Rule{
		Name:           string(direction) + " rule",
		Direction:      direction,
		Days:           days,
		OrderTypeCodes: codes,
		IsActive:       true,
		SortOrder:      sortOrder,
	}
	require.NoError(t, database.NewRuleRepository(db).Create(context.Background(), r))
	return r
}

func Template(t testing.TB, db *database.DB, direction reminder.Direction, language, subject, body string) *template.Template {
	t.Helper()
	tpl := &template.Template{
		Name:         string(direction) + " " + language,
		Type:         direction,
		LanguageCode: language,
		Subject:      subject,
		Body:         body,
		IsActive:     true,
	}
	require.NoError(t, database.NewTemplateRepository(db).Create(context.Background(), tpl))
	return tpl
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else if r >= 'A' && r <= 'Z' {
			out = append(out, r+'a'-'A')
		}
	}
	return string(out)
}
