package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/aristath/holdings/internal/testing"
)

func newTestRepository(t *testing.T) *PositionRepository {
	t.Helper()
	db, _ := testutil.NewTestDB(t, "holdings")
	return NewPositionRepository(db.Conn(), zerolog.Nop())
}

func TestPositionRepository_ReplaceAllAndGetAll(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	positions := DefaultPositions()
	require.NoError(t, repo.ReplaceAll(ctx, positions))

	got, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(positions))

	for i := range positions {
		assert.Equal(t, positions[i].ID, got[i].ID, "order preserved")
		assert.Equal(t, positions[i].Symbol, got[i].Symbol)
		assert.Equal(t, positions[i].Exchange, got[i].Exchange)
		assert.Equal(t, positions[i].Sector, got[i].Sector)
		assert.Equal(t, positions[i].Investment, got[i].Investment)
		assert.Equal(t, positions[i].PresentValue, got[i].PresentValue)
		require.NotNil(t, got[i].PERatio)
		assert.Equal(t, *positions[i].PERatio, *got[i].PERatio)
		require.NotNil(t, got[i].LatestEarnings)
		assert.Equal(t, PriceSourceImport, got[i].PriceSource)
		assert.Nil(t, got[i].PriceUpdatedAt)
	}

	// Replacing again discards the previous set
	require.NoError(t, repo.ReplaceAll(ctx, positions[:2]))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPositionRepository_GetAllEmpty(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPositionRepository_UpdatePrices(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	positions := DefaultPositions()
	require.NoError(t, repo.ReplaceAll(ctx, positions))

	updatedAt := time.Date(2024, 11, 4, 10, 30, 0, 0, time.UTC)
	refreshed := ClonePositions(positions)
	refreshed[0].CurrentPrice = 1700.25
	refreshed[0].PERatio = nil
	refreshed[0].PriceSource = PriceSourceSynthetic
	refreshed[0].Degraded = true
	refreshed[0].PriceUpdatedAt = &updatedAt

	require.NoError(t, repo.UpdatePrices(ctx, refreshed[:1]))

	got, err := repo.GetAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1700.25, got[0].CurrentPrice)
	assert.InDelta(t, 1700.25*10, got[0].PresentValue, 1e-9)
	assert.Nil(t, got[0].PERatio)
	assert.Equal(t, PriceSourceSynthetic, got[0].PriceSource)
	assert.True(t, got[0].Degraded)
	require.NotNil(t, got[0].PriceUpdatedAt)
	assert.True(t, updatedAt.Equal(*got[0].PriceUpdatedAt))

	// Untouched rows keep their values
	assert.Equal(t, positions[1].CurrentPrice, got[1].CurrentPrice)
	assert.False(t, got[1].Degraded)
}
