package listings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

func paginationParams(limit int, cursor string) pagination.Params {
	return pagination.Params{Limit: limit, Cursor: cursor}
}

func TestDecrementMarksSoldAtZero(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seller := dbtest.SeedUser(t, conn, dbtest.Seller())
	listing := dbtest.SeedListing(t, conn, seller.ID, 1000, 2, false)
	ctx := context.Background()

	ok, err := repo.Decrement(ctx, listing.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.QuantityAvailable)
	assert.Equal(t, enums.ListingStatusActive, loaded.Status)

	ok, err = repo.Decrement(ctx, listing.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err = repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.QuantityAvailable)
	assert.Equal(t, enums.ListingStatusSold, loaded.Status)
}

func TestDecrementKeepsCancelledListingCancelled(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seller := dbtest.SeedUser(t, conn, dbtest.Seller())
	listing := dbtest.SeedListing(t, conn, seller.ID, 1000, 1, false)
	ctx := context.Background()
	require.NoError(t, conn.Exec("UPDATE listings SET status = ? WHERE id = ?", enums.ListingStatusCancelled, listing.ID).Error)

	ok, err := repo.Decrement(ctx, listing.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.QuantityAvailable)
	assert.Equal(t, enums.ListingStatusCancelled, loaded.Status, "a drained cancelled listing is not relabelled sold")
}

func TestDecrementRefusesOversell(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seller := dbtest.SeedUser(t, conn, dbtest.Seller())
	listing := dbtest.SeedListing(t, conn, seller.ID, 1000, 1, false)
	ctx := context.Background()

	ok, err := repo.Decrement(ctx, listing.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.QuantityAvailable)
}

func TestRestoreReactivatesSoldListing(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seller := dbtest.SeedUser(t, conn, dbtest.Seller())
	listing := dbtest.SeedListing(t, conn, seller.ID, 1000, 1, false)
	ctx := context.Background()

	ok, err := repo.Decrement(ctx, listing.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Restore(ctx, listing.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.QuantityAvailable)
	assert.Equal(t, enums.ListingStatusActive, loaded.Status)

	ok, err = repo.Restore(ctx, listing.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "restore must not exceed listed quantity")
}
