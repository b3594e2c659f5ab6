package users

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/dbtest"
)

func TestSuspendIsOneShot(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	user := dbtest.SeedUser(t, conn, dbtest.Seller())
	ctx := context.Background()

	changed, err := repo.Suspend(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Suspend(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, changed)

	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.MarketplaceSuspended)
	assert.NotNil(t, loaded.SuspendedAt)
	assert.False(t, loaded.CanSell())
}

func TestMarkFirstSaleOnlyOnce(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	user := dbtest.SeedUser(t, conn, dbtest.Seller())
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	changed, err := repo.MarkFirstSale(ctx, user.ID, first)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkFirstSale(ctx, user.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.FirstSaleAt)
	assert.True(t, loaded.FirstSaleAt.Equal(first))
}

func TestUpdateSellerRating(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	user := dbtest.SeedUser(t, conn, dbtest.Seller())

	require.NoError(t, repo.UpdateSellerRating(context.Background(), user.ID, decimal.RequireFromString("4.5"), 2))

	loaded, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.SellerRating.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, 2, loaded.SellerReviewCount)
}
