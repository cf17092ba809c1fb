package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/holdings/internal/modules/portfolio"
	testutil "github.com/aristath/holdings/internal/testing"
)

func newTestRunRepository(t *testing.T) *RunRepository {
	t.Helper()
	db, _ := testutil.NewTestDB(t, "holdings")
	return NewRunRepository(db.Conn(), zerolog.Nop())
}

func testResult(id string, startedAt time.Time, batchError string) portfolio.RefreshResult {
	return portfolio.RefreshResult{
		RunID:      id,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(1500 * time.Millisecond),
		BatchError: batchError,
		States: map[string]portfolio.PriceSource{
			"HDFCBANK.NS": portfolio.PriceSourceBatch,
			"INFY.NS":     portfolio.PriceSourceIndividual,
			"XXX.NS":      portfolio.PriceSourceSynthetic,
		},
	}
}

func TestRunRepository_RecordAndRecent(t *testing.T) {
	repo := newTestRunRepository(t)
	ctx := context.Background()

	first := time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, testResult("run-a", first, "")))
	require.NoError(t, repo.Record(ctx, testResult("run-b", first.Add(5*time.Minute), "rate limited")))

	runs, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	latest := runs[0]
	assert.Equal(t, "run-b", latest.ID)
	assert.True(t, latest.StartedAt.Equal(first.Add(5*time.Minute)))
	assert.True(t, latest.FinishedAt.Equal(first.Add(5*time.Minute+1500*time.Millisecond)))
	assert.Equal(t, 3, latest.Symbols)
	assert.Equal(t, 1, latest.BatchCount)
	assert.Equal(t, 1, latest.IndividualCount)
	assert.Equal(t, 1, latest.SyntheticCount)
	assert.Equal(t, "rate limited", latest.BatchError)
	assert.Equal(t, portfolio.PriceSourceSynthetic, latest.States["XXX.NS"])

	assert.Equal(t, "run-a", runs[1].ID)
	assert.Empty(t, runs[1].BatchError)
}

func TestRunRepository_RecentLimit(t *testing.T) {
	repo := newTestRunRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, repo.Record(ctx, testResult(id, base.Add(time.Duration(i)*time.Minute), "")))
	}

	runs, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
}

func TestRunRepository_DuplicateID(t *testing.T) {
	repo := newTestRunRepository(t)
	ctx := context.Background()

	result := testResult("same", time.Now(), "")
	require.NoError(t, repo.Record(ctx, result))
	assert.Error(t, repo.Record(ctx, result))
}

func TestRunRepository_Prune(t *testing.T) {
	repo := newTestRunRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, testResult("old", base, "")))
	require.NoError(t, repo.Record(ctx, testResult("new", base.Add(72*time.Hour), "")))

	deleted, err := repo.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	runs, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}
