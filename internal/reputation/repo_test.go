package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

func TestCountDistinctOpenReporters(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()
	target := uuid.New()
	reporter := uuid.New()

	insert := func(reporterID uuid.UUID, status enums.ReportStatus, createdAt time.Time) {
		t.Helper()
		require.NoError(t, repo.CreateReport(ctx, &models.Report{
			ID:           uuid.New(),
			ReporterID:   reporterID,
			TargetType:   enums.ReportTargetUser,
			TargetID:     target,
			TargetUserID: target,
			Reason:       "spam",
			Status:       status,
			CreatedAt:    createdAt,
		}))
	}
	insert(reporter, enums.ReportStatusOpen, now)
	insert(reporter, enums.ReportStatusOpen, now)
	insert(uuid.New(), enums.ReportStatusDismissed, now)
	insert(uuid.New(), enums.ReportStatusOpen, now.Add(-48*time.Hour))

	count, err := repo.CountDistinctOpenReporters(ctx, target, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountDistinctOpenReporters(ctx, target, now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBlockExistsEitherDirection(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, repo.CreateBlock(ctx, &models.Block{ID: uuid.New(), BlockerID: a, BlockedID: b, CreatedAt: time.Now().UTC()}))

	exists, err := repo.BlockExists(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.BlockExists(ctx, a, c)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSellerRatingAggregateEmpty(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	avg, count, err := repo.SellerRatingAggregate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, avg.IsZero())
	assert.Equal(t, 0, count)
}
