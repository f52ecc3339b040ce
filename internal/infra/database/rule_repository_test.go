package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/domain/reminder"
	"order_reminder_service/internal/infra/database"
	"order_reminder_service/internal/infra/database/databasetest"
)

func TestRuleRepositoryUniqueAmongNonDeleted(t *testing.T) {
	ctx := context.Background()
	db := databasetest.New(t)
	repo := database.NewRuleRepository(db)

	first := databasetest.Rule(t, db, reminder.DirectionPre, 7, 1)

	dup := &reminder.Rule{Name: "again", Direction: reminder.DirectionPre, Days: 7, IsActive: true}
	assert.ErrorIs(t, repo.Create(ctx, dup), database.ErrDuplicateRule)

	// same days in the other direction is fine
	databasetest.Rule(t, db, reminder.DirectionPost, 7, 1)

	require.NoError(t, repo.SoftDelete(ctx, first.ID, time.Now()))
	require.NoError(t, repo.Create(ctx, dup), "deleted rules do not block re-creation")

	_, err := repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, database.ErrRuleNotFound)
	assert.ErrorIs(t, repo.SoftDelete(ctx, first.ID, time.Now()), database.ErrRuleNotFound)

	all, err := repo.ListAll(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	all, err = repo.ListAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRuleRepositoryListActiveOrderAndCodes(t *testing.T) {
	ctx := context.Background()
	db := databasetest.New(t)
	repo := database.NewRuleRepository(db)

	r3 := databasetest.Rule(t, db, reminder.DirectionPre, 3, 2, "TYPE_X", "TYPE_Z")
	r7 := databasetest.Rule(t, db, reminder.DirectionPre, 7, 1)
	r1 := databasetest.Rule(t, db, reminder.DirectionPre, 1, 2)
	off := databasetest.Rule(t, db, reminder.DirectionPost, 1, 0)
	require.NoError(t, repo.SetActive(ctx, off.ID, false, time.Now()))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, []int64{r7.ID, r3.ID, r1.ID}, []int64{active[0].ID, active[1].ID, active[2].ID})
	assert.Equal(t, []string{"TYPE_X", "TYPE_Z"}, active[1].OrderTypeCodes)
	assert.Empty(t, active[0].OrderTypeCodes)

	exists, err := repo.ExistsWithDays(ctx, reminder.DirectionPre, 3, r3.ID)
	require.NoError(t, err)
	assert.False(t, exists, "a rule never conflicts with itself")
	exists, err = repo.ExistsWithDays(ctx, reminder.DirectionPre, 3, 0)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := databasetest.New(t)

	res, err := database.Seed(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, database.SeedResult{OrderTypes: 2, Rules: 4, Templates: 8}, res)

	res, err = database.Seed(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, database.SeedResult{}, res)

	rules, err := database.NewRuleRepository(db).ListActive(ctx)
	require.NoError(t, err)
	for _, r := range rules {
		assert.True(t, r.IsDefault)
	}

	tpl, err := database.NewTemplateRepository(db).FindActive(ctx, reminder.DirectionPost, "de")
	require.NoError(t, err)
	assert.Equal(t, "{{order_type}} ist abgelaufen", tpl.Subject)
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := databasetest.New(t)
	v, err := database.Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestDialectRebind(t *testing.T) {
	q := `UPDATE reminders SET status = ? WHERE id = ? AND status = ?`
	assert.Equal(t, `UPDATE reminders SET status = $1 WHERE id = $2 AND status = $3`, database.Postgres.Rebind(q))
	assert.Equal(t, q, database.SQLite.Rebind(q))
}
