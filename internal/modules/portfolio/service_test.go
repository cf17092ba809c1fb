package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/holdings/internal/events"
)

// MockPositionRepository is a mock position repository for testing
type MockPositionRepository struct {
	mock.Mock
}

func (m *MockPositionRepository) GetAll(ctx context.Context) ([]Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Position), args.Error(1)
}

func (m *MockPositionRepository) ReplaceAll(ctx context.Context, positions []Position) error {
	args := m.Called(ctx, positions)
	return args.Error(0)
}

func (m *MockPositionRepository) UpdatePrices(ctx context.Context, positions []Position) error {
	args := m.Called(ctx, positions)
	return args.Error(0)
}

// MockRefresher is a mock refresher for testing
type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, positions []Position) (RefreshResult, error) {
	args := m.Called(ctx, positions)
	return args.Get(0).(RefreshResult), args.Error(1)
}

// MockRunRecorder is a mock run recorder for testing
type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) Record(ctx context.Context, result RefreshResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EventData
}

func (p *recordingPublisher) EmitTyped(module string, data events.EventData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, data)
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func TestService_LoadFromRepository(t *testing.T) {
	repo := new(MockPositionRepository)
	stored := []Position{testPosition("INFY.NS", "Technology", 1000, 10, 1100)}
	repo.On("GetAll", mock.Anything).Return(stored, nil)

	pub := &recordingPublisher{}
	svc := NewService(repo, new(MockRefresher), nil, pub, zerolog.Nop())

	snap, err := svc.Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Positions, 1)
	assert.Equal(t, 11000.0, snap.Totals.PresentValue)
	assert.Equal(t, 100.0, svc.Snapshot().Positions[0].PortfolioPct)
	assert.Equal(t, []events.EventType{events.PortfolioLoaded}, pub.types())
	repo.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
}

func TestService_LoadSeedsDefaultsWhenEmpty(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("GetAll", mock.Anything).Return([]Position{}, nil)
	repo.On("ReplaceAll", mock.Anything, mock.MatchedBy(func(p []Position) bool { return len(p) == 5 })).Return(nil)

	svc := NewService(repo, new(MockRefresher), nil, nil, zerolog.Nop())

	snap, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Positions, 5)
	repo.AssertExpectations(t)
}

func TestService_LoadError(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("GetAll", mock.Anything).Return(nil, errors.New("disk gone"))

	svc := NewService(repo, new(MockRefresher), nil, nil, zerolog.Nop())

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Empty(t, svc.Snapshot().Positions)
}

func TestService_Replace(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(MockRefresher), nil, nil, zerolog.Nop())

	positions := []Position{
		testPosition("A.NS", "Energy", 10, 1, 10),
		testPosition("B.NS", "Energy", 10, 3, 10),
	}
	snap, err := svc.Replace(context.Background(), positions)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, snap.Positions[0].PortfolioPct, 1e-9)

	_, err = svc.Replace(context.Background(), nil)
	assert.Error(t, err)
}

func TestService_Refresh(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdatePrices", mock.Anything, mock.Anything).Return(nil)

	refresher := new(MockRefresher)
	runs := new(MockRunRecorder)
	pub := &recordingPublisher{}
	svc := NewService(repo, refresher, runs, pub, zerolog.Nop())

	_, err := svc.Replace(context.Background(), []Position{
		testPosition("A.NS", "Energy", 10, 1, 10),
		testPosition("B.NS", "Energy", 10, 1, 10),
	})
	require.NoError(t, err)

	refreshed := []Position{
		testPosition("A.NS", "Energy", 10, 1, 12),
		testPosition("B.NS", "Energy", 10, 1, 9),
	}
	refreshed[1].Degraded = true
	refreshed[1].PriceSource = PriceSourceSynthetic

	result := RefreshResult{
		RunID:      "run-1",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Snapshot:   RecomputeSnapshot(refreshed),
		States: map[string]PriceSource{
			"A.NS": PriceSourceBatch,
			"B.NS": PriceSourceSynthetic,
		},
	}
	refresher.On("Refresh", mock.Anything, mock.MatchedBy(func(p []Position) bool { return len(p) == 2 })).Return(result, nil)
	runs.On("Record", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, got.Count(PriceSourceBatch))
	assert.Equal(t, 1, got.Count(PriceSourceSynthetic))
	assert.Equal(t, 21.0, svc.Snapshot().Totals.PresentValue)
	assert.Equal(t, []events.EventType{events.PricesRefreshed, events.RefreshDegraded}, pub.types())

	repo.AssertCalled(t, "UpdatePrices", mock.Anything, mock.Anything)
	runs.AssertExpectations(t)
}

func TestService_RefreshNoValidSymbolsKeepsSnapshot(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)

	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(RefreshResult{}, ErrNoValidSymbols)

	svc := NewService(repo, refresher, nil, nil, zerolog.Nop())
	_, err := svc.Replace(context.Background(), []Position{testPosition("1", "Energy", 10, 1, 10)})
	require.NoError(t, err)
	before := svc.Snapshot()

	_, err = svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoValidSymbols)
	assert.Equal(t, before.Totals, svc.Snapshot().Totals)
	repo.AssertNotCalled(t, "UpdatePrices", mock.Anything, mock.Anything)
}

func TestService_RefreshWithoutPositions(t *testing.T) {
	svc := NewService(new(MockPositionRepository), new(MockRefresher), nil, nil, zerolog.Nop())

	_, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoValidSymbols)
}

func TestService_RefreshPersistFailureIsNotFatal(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdatePrices", mock.Anything, mock.Anything).Return(errors.New("locked"))

	refreshed := []Position{testPosition("A.NS", "Energy", 10, 1, 15)}
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(RefreshResult{
		Snapshot: RecomputeSnapshot(refreshed),
		States:   map[string]PriceSource{"A.NS": PriceSourceBatch},
	}, nil)

	svc := NewService(repo, refresher, nil, nil, zerolog.Nop())
	_, err := svc.Replace(context.Background(), []Position{testPosition("A.NS", "Energy", 10, 1, 10)})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, svc.Snapshot().Totals.PresentValue)
}

func TestService_SnapshotIsACopy(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(MockRefresher), nil, nil, zerolog.Nop())
	_, err := svc.Replace(context.Background(), []Position{testPosition("A.NS", "Energy", 10, 1, 10)})
	require.NoError(t, err)

	snap := svc.Snapshot()
	snap.Positions[0].CurrentPrice = 1000

	assert.Equal(t, 10.0, svc.Snapshot().Positions[0].CurrentPrice)
}

func TestService_RefreshesAreSerialized(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdatePrices", mock.Anything, mock.Anything).Return(nil)

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}).
		Return(RefreshResult{
			Snapshot: RecomputeSnapshot([]Position{testPosition("A.NS", "Energy", 10, 1, 11)}),
			States:   map[string]PriceSource{"A.NS": PriceSourceBatch},
		}, nil)

	svc := NewService(repo, refresher, nil, nil, zerolog.Nop())
	_, err := svc.Replace(context.Background(), []Position{testPosition("A.NS", "Energy", 10, 1, 10)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Refresh(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestService_Recompute(t *testing.T) {
	repo := new(MockPositionRepository)
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(MockRefresher), nil, nil, zerolog.Nop())
	_, err := svc.Replace(context.Background(), []Position{testPosition("A.NS", "Energy", 10, 2, 10)})
	require.NoError(t, err)

	snap := svc.Recompute()
	assert.Equal(t, 20.0, snap.Totals.PresentValue)
}
