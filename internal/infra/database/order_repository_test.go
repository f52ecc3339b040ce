package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/domain/order"
	"order_reminder_service/internal/infra/database"
	"order_reminder_service/internal/infra/database/databasetest"
)

func TestOrderRepositorySetReplacedByKeepsFirstLink(t *testing.T) {
	ctx := context.Background()
	db := databasetest.New(t)
	holder := databasetest.Holder(t, db, "Acme", "en")
	ot := databasetest.FixedPeriodType(t, db, "TYPE_X", 12)
	repo := database.NewOrderRepository(db)

	newOrder := func() *order.Order {
		o := &order.Order{
			OrderTypeID:     ot.ID,
			HolderID:        holder.ID,
			ApplicationDate: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
			ExpirationDate:  time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
			IsActive:        true,
		}
		require.NoError(t, repo.Create(ctx, o))
		return o
	}
	a, b, c := newOrder(), newOrder(), newOrder()

	require.NoError(t, repo.SetReplacedBy(ctx, a.ID, b.ID))
	assert.ErrorIs(t, repo.SetReplacedBy(ctx, a.ID, c.ID), database.ErrOrderAlreadyReplaced)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ReplacedBy.Int64)

	assert.ErrorIs(t, repo.SetReplacedBy(ctx, 9999, c.ID), database.ErrOrderNotFound)
}
