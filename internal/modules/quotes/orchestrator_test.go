package quotes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/modules/portfolio"
)

// MockQuoteSource is a mock quote source for testing
type MockQuoteSource struct {
	mock.Mock
}

func (m *MockQuoteSource) GetPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockQuoteSource) GetMetrics(ctx context.Context, symbol string) (domain.Metrics, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(domain.Metrics), args.Error(1)
}

func (m *MockQuoteSource) GetBatch(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Quote), args.Error(1)
}

var fixedNow = time.Date(2024, 11, 4, 10, 30, 0, 0, time.UTC)

type testOrchestrator struct {
	*Orchestrator
	source *MockQuoteSource
	sleeps []time.Duration
}

func newTestOrchestrator(t *testing.T) *testOrchestrator {
	t.Helper()

	source := new(MockQuoteSource)
	tro := &testOrchestrator{source: source}
	o := NewOrchestrator(source, NewSyntheticSource(42), DefaultRequestDelay, zerolog.Nop())
	o.now = func() time.Time { return fixedNow }
	o.newID = func() string { return "run-1" }
	o.sleep = func(ctx context.Context, d time.Duration) error {
		tro.sleeps = append(tro.sleeps, d)
		return nil
	}
	tro.Orchestrator = o
	return tro
}

func position(symbol string, purchasePrice, quantity, currentPrice float64, pe float64) portfolio.Position {
	earnings := "Q2 FY25"
	return portfolio.Recalculate(portfolio.Position{
		ID:             "id-" + symbol,
		Symbol:         symbol,
		Name:           symbol,
		Exchange:       domain.ExchangeNSE,
		Sector:         "Financials",
		PurchasePrice:  purchasePrice,
		Quantity:       quantity,
		CurrentPrice:   currentPrice,
		PERatio:        &pe,
		LatestEarnings: &earnings,
		PriceSource:    portfolio.PriceSourceImport,
	})
}

func ptr[T any](v T) *T { return &v }

func TestOrchestrator_Refresh_AllFromBatch(t *testing.T) {
	o := newTestOrchestrator(t)
	positions := []portfolio.Position{
		position("HDFCBANK.NS", 1490, 50, 1650, 19.4),
		position("INFY.NS", 1380, 40, 1520, 24.8),
	}

	o.source.On("GetBatch", mock.Anything, []string{"HDFCBANK.NS", "INFY.NS"}).Return([]domain.Quote{
		{Symbol: "HDFCBANK.NS", Price: 1700.456, PERatio: ptr(20.123)},
		{Symbol: "INFY.NS", Price: 1500},
	}, nil)

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Empty(t, result.BatchError)
	assert.Equal(t, map[string]portfolio.PriceSource{
		"HDFCBANK.NS": portfolio.PriceSourceBatch,
		"INFY.NS":     portfolio.PriceSourceBatch,
	}, result.States)
	assert.False(t, result.Degraded())
	assert.Empty(t, o.sleeps)

	got := result.Snapshot.Positions
	require.Len(t, got, 2)
	assert.Equal(t, 1700.46, got[0].CurrentPrice)
	assert.Equal(t, 20.12, *got[0].PERatio)
	assert.InDelta(t, 1700.46*50, got[0].PresentValue, 1e-6)
	assert.Equal(t, fixedNow, *got[0].PriceUpdatedAt)

	// No P/E in the quote keeps the previous value
	assert.Equal(t, 1500.0, got[1].CurrentPrice)
	assert.Equal(t, 24.8, *got[1].PERatio)
	assert.Equal(t, "Q2 FY25", *got[1].LatestEarnings)

	// Inputs are not mutated
	assert.Equal(t, 1650.0, positions[0].CurrentPrice)
	assert.Equal(t, portfolio.PriceSourceImport, positions[0].PriceSource)

	o.source.AssertNotCalled(t, "GetPrice", mock.Anything, mock.Anything)
	o.source.AssertExpectations(t)
}

func TestOrchestrator_Refresh_BatchFailureFallsBackToIndividual(t *testing.T) {
	o := newTestOrchestrator(t)
	positions := []portfolio.Position{
		position("HDFCBANK.NS", 1490, 50, 1650, 19.4),
		position("INFY.NS", 1380, 40, 1520, 24.8),
		position("TCS.NS", 3250, 15, 3900, 29.6),
	}

	o.source.On("GetBatch", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
	o.source.On("GetPrice", mock.Anything, "HDFCBANK.NS").Return(1660.0, nil)
	o.source.On("GetPrice", mock.Anything, "INFY.NS").Return(1530.0, nil)
	o.source.On("GetPrice", mock.Anything, "TCS.NS").Return(3950.0, nil)
	o.source.On("GetMetrics", mock.Anything, "HDFCBANK.NS").Return(domain.Metrics{PERatio: ptr(19.9), Earnings: ptr("Q3 FY25")}, nil)
	o.source.On("GetMetrics", mock.Anything, "INFY.NS").Return(domain.Metrics{}, errors.New("not found"))
	o.source.On("GetMetrics", mock.Anything, "TCS.NS").Return(domain.Metrics{PERatio: ptr(30.0)}, nil)

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	assert.Equal(t, "rate limited", result.BatchError)
	assert.Equal(t, 3, result.Count(portfolio.PriceSourceIndividual))
	assert.Equal(t, []time.Duration{DefaultRequestDelay, DefaultRequestDelay}, o.sleeps)

	got := result.Snapshot.Positions
	assert.Equal(t, 1660.0, got[0].CurrentPrice)
	assert.Equal(t, 19.9, *got[0].PERatio)
	assert.Equal(t, "Q3 FY25", *got[0].LatestEarnings)
	assert.Equal(t, 24.8, *got[1].PERatio, "metrics failure keeps previous P/E")
	assert.Equal(t, 30.0, *got[2].PERatio)
	for _, p := range got {
		assert.Equal(t, portfolio.PriceSourceIndividual, p.PriceSource)
		assert.False(t, p.Degraded)
	}

	o.source.AssertExpectations(t)
}

func TestOrchestrator_Refresh_UnknownSymbolGoesSynthetic(t *testing.T) {
	o := newTestOrchestrator(t)
	positions := []portfolio.Position{
		position("HDFCBANK.NS", 1490, 50, 1650, 19.4),
		position("XXX.NS", 100, 10, 110, 12),
	}

	o.source.On("GetBatch", mock.Anything, []string{"HDFCBANK.NS", "XXX.NS"}).Return([]domain.Quote{
		{Symbol: "HDFCBANK.NS", Price: 1655},
	}, nil)
	o.source.On("GetPrice", mock.Anything, "XXX.NS").Return(0.0, errors.New("no data"))

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	assert.Equal(t, portfolio.PriceSourceBatch, result.States["HDFCBANK.NS"])
	assert.Equal(t, portfolio.PriceSourceSynthetic, result.States["XXX.NS"])
	assert.True(t, result.Degraded())
	assert.Empty(t, o.sleeps, "a single individual lookup needs no delay")

	got := result.Snapshot.Positions
	assert.Equal(t, 1655.0, got[0].CurrentPrice)
	assert.False(t, got[0].Degraded)

	xxx := got[1]
	assert.True(t, xxx.Degraded)
	assert.Equal(t, portfolio.PriceSourceSynthetic, xxx.PriceSource)
	assert.Greater(t, xxx.CurrentPrice, 0.0)
	assert.InDelta(t, defaultBasePrice, xxx.CurrentPrice, defaultBasePrice*maxJitter+0.01)
	assert.Equal(t, 12.0, *xxx.PERatio)
	assert.Equal(t, 1, result.Snapshot.Totals.Degraded)

	o.source.AssertNotCalled(t, "GetMetrics", mock.Anything, "XXX.NS")
}

func TestOrchestrator_Refresh_UnusableBatchPriceRetriedIndividually(t *testing.T) {
	o := newTestOrchestrator(t)
	positions := []portfolio.Position{position("ITC.NS", 390, 100, 430, 26.3)}

	o.source.On("GetBatch", mock.Anything, mock.Anything).Return([]domain.Quote{{Symbol: "ITC.NS", Price: 0}}, nil)
	o.source.On("GetPrice", mock.Anything, "ITC.NS").Return(432.129, nil)
	o.source.On("GetMetrics", mock.Anything, "ITC.NS").Return(domain.Metrics{}, nil)

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	assert.Equal(t, portfolio.PriceSourceIndividual, result.States["ITC.NS"])
	assert.Equal(t, 432.13, result.Snapshot.Positions[0].CurrentPrice)
}

func TestOrchestrator_Refresh_NoValidSymbols(t *testing.T) {
	tests := []struct {
		name      string
		positions []portfolio.Position
	}{
		{name: "empty", positions: nil},
		{name: "numeric only", positions: []portfolio.Position{position("12345", 10, 1, 10, 1)}},
		{name: "too short", positions: []portfolio.Position{position("A", 10, 1, 10, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t)

			_, err := o.Refresh(context.Background(), tt.positions)
			assert.ErrorIs(t, err, portfolio.ErrNoValidSymbols)
			o.source.AssertNotCalled(t, "GetBatch", mock.Anything, mock.Anything)
		})
	}
}

func TestOrchestrator_Refresh_SkipsUnquotablePositions(t *testing.T) {
	o := newTestOrchestrator(t)
	positions := []portfolio.Position{
		position("12345", 10, 1, 11, 5),
		position("TCS.NS", 3250, 15, 3900, 29.6),
	}

	o.source.On("GetBatch", mock.Anything, []string{"TCS.NS"}).Return([]domain.Quote{{Symbol: "TCS.NS", Price: 3910}}, nil)

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	got := result.Snapshot.Positions
	assert.Equal(t, 11.0, got[0].CurrentPrice)
	assert.Equal(t, portfolio.PriceSourceImport, got[0].PriceSource)
	assert.Nil(t, got[0].PriceUpdatedAt)
	assert.NotContains(t, result.States, "12345")
}

func TestOrchestrator_Refresh_DuplicateSymbolsRequestedOnce(t *testing.T) {
	o := newTestOrchestrator(t)
	positions := []portfolio.Position{
		position("infy.ns", 1380, 40, 1520, 24.8),
		position("INFY.NS", 1400, 10, 1520, 24.8),
	}

	o.source.On("GetBatch", mock.Anything, []string{"INFY.NS"}).Return([]domain.Quote{{Symbol: "infy.ns", Price: 1600}}, nil).Once()

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	require.Len(t, result.States, 1)
	for _, p := range result.Snapshot.Positions {
		assert.Equal(t, 1600.0, p.CurrentPrice)
		assert.Equal(t, portfolio.PriceSourceBatch, p.PriceSource)
	}
	assert.Equal(t, 40.0, result.Snapshot.Positions[0].Quantity)
	assert.Equal(t, 10.0, result.Snapshot.Positions[1].Quantity)
	o.source.AssertExpectations(t)
}

func TestOrchestrator_Refresh_CancelledDuringIndividualLookups(t *testing.T) {
	o := newTestOrchestrator(t)
	o.sleep = func(ctx context.Context, d time.Duration) error {
		return fmt.Errorf("wait interrupted: %w", context.Canceled)
	}
	positions := []portfolio.Position{
		position("HDFCBANK.NS", 1490, 50, 1650, 19.4),
		position("INFY.NS", 1380, 40, 1520, 24.8),
	}

	o.source.On("GetBatch", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	o.source.On("GetPrice", mock.Anything, "HDFCBANK.NS").Return(1660.0, nil)
	o.source.On("GetMetrics", mock.Anything, "HDFCBANK.NS").Return(domain.Metrics{}, nil)

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	assert.Equal(t, portfolio.PriceSourceIndividual, result.States["HDFCBANK.NS"])
	assert.Equal(t, portfolio.PriceSourceSynthetic, result.States["INFY.NS"])
	o.source.AssertNotCalled(t, "GetPrice", mock.Anything, "INFY.NS")

	infy := result.Snapshot.Positions[1]
	assert.True(t, infy.Degraded)
	assert.InDelta(t, 1520.0, infy.CurrentPrice, 1520*maxJitter+0.01)
}

func TestOrchestrator_Refresh_SnapshotTotals(t *testing.T) {
	o := newTestOrchestrator(t)
	positions := []portfolio.Position{
		position("HDFCBANK.NS", 100, 10, 100, 10),
		position("INFY.NS", 100, 10, 100, 10),
	}

	o.source.On("GetBatch", mock.Anything, mock.Anything).Return([]domain.Quote{
		{Symbol: "HDFCBANK.NS", Price: 150},
		{Symbol: "INFY.NS", Price: 50},
	}, nil)

	result, err := o.Refresh(context.Background(), positions)
	require.NoError(t, err)

	snap := result.Snapshot
	assert.InDelta(t, 2000.0, snap.Totals.Investment, 1e-9)
	assert.InDelta(t, 2000.0, snap.Totals.PresentValue, 1e-9)
	assert.InDelta(t, 75.0, snap.Positions[0].PortfolioPct, 1e-9)
	assert.InDelta(t, 25.0, snap.Positions[1].PortfolioPct, 1e-9)
	require.Len(t, snap.Sectors, 1)
	assert.Equal(t, "Financials", snap.Sectors[0].Sector)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}
