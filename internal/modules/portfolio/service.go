package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/events"
)

// PositionRepositoryInterface defines the position storage used by the service
type PositionRepositoryInterface interface {
	GetAll(ctx context.Context) ([]Position, error)
	ReplaceAll(ctx context.Context, positions []Position) error
	UpdatePrices(ctx context.Context, positions []Position) error
}

// EventPublisher emits typed events
type EventPublisher interface {
	EmitTyped(module string, data events.EventData)
}

// Service owns the current portfolio snapshot.
//
// Reads are lock-free: the snapshot is swapped atomically and never modified after
// publication. Writers (load, import, refresh, recompute) are serialized so two refreshes
// never race to publish.
type Service struct {
	repo      PositionRepositoryInterface
	refresher Refresher
	runs      RunRecorder
	events    EventPublisher

	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]

	log zerolog.Logger
}

// NewService creates a new portfolio service. runs and publisher may be nil.
func NewService(
	repo PositionRepositoryInterface,
	refresher Refresher,
	runs RunRecorder,
	publisher EventPublisher,
	log zerolog.Logger,
) *Service {
	s := &Service{
		repo:      repo,
		refresher: refresher,
		runs:      runs,
		events:    publisher,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
	empty := RecomputeSnapshot(nil)
	s.current.Store(&empty)
	return s
}

// Snapshot returns the current snapshot. The positions slice is a private copy.
func (s *Service) Snapshot() Snapshot {
	snap := *s.current.Load()
	snap.Positions = ClonePositions(snap.Positions)
	snap.Sectors = append([]SectorSummary(nil), snap.Sectors...)
	return snap
}

// Load reads positions from storage and publishes a snapshot.
// An empty store is seeded with the default positions.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	positions, err := s.repo.GetAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load positions: %w", err)
	}

	usedDefaults := false
	if len(positions) == 0 {
		s.log.Info().Msg("No stored positions, seeding defaults")
		positions = DefaultPositions()
		usedDefaults = true
		if err := s.repo.ReplaceAll(ctx, positions); err != nil {
			return Snapshot{}, fmt.Errorf("failed to seed default positions: %w", err)
		}
	}

	snap := s.publish(RecomputeSnapshot(positions))

	s.emit(&events.PortfolioLoadedData{
		Positions:    len(snap.Positions),
		UsedDefaults: usedDefaults,
		PresentValue: snap.Totals.PresentValue,
	})

	return snap, nil
}

// Replace stores a new position set wholesale and publishes its snapshot
func (s *Service) Replace(ctx context.Context, positions []Position) (Snapshot, error) {
	if len(positions) == 0 {
		return Snapshot{}, fmt.Errorf("refusing to replace portfolio with an empty position set")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	positions = ClonePositions(positions)
	if err := s.repo.ReplaceAll(ctx, positions); err != nil {
		return Snapshot{}, fmt.Errorf("failed to store positions: %w", err)
	}

	snap := s.publish(RecomputeSnapshot(positions))
	s.log.Info().
		Int("positions", len(snap.Positions)).
		Float64("investment", snap.Totals.Investment).
		Msg("Portfolio replaced")

	return snap, nil
}

// Refresh updates prices for the current positions.
// ErrNoValidSymbols is returned unchanged and leaves the snapshot as it was.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	positions := ClonePositions(s.current.Load().Positions)
	if len(positions) == 0 {
		return RefreshResult{}, ErrNoValidSymbols
	}

	result, err := s.refresher.Refresh(ctx, positions)
	if err != nil {
		if errors.Is(err, ErrNoValidSymbols) {
			s.log.Warn().Int("positions", len(positions)).Msg("Refresh skipped: no valid symbols")
			return RefreshResult{}, err
		}
		return RefreshResult{}, fmt.Errorf("failed to refresh prices: %w", err)
	}

	result.Snapshot = s.publish(result.Snapshot)

	if err := s.repo.UpdatePrices(ctx, result.Snapshot.Positions); err != nil {
		// The in-memory snapshot stays authoritative; the next refresh persists again
		s.log.Error().Err(err).Msg("Failed to persist refreshed prices")
	}

	if s.runs != nil {
		if err := s.runs.Record(ctx, result); err != nil {
			s.log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to record refresh run")
		}
	}

	s.emit(&events.PricesRefreshedData{
		RunID:        result.RunID,
		Symbols:      len(result.States),
		Batch:        result.Count(PriceSourceBatch),
		Individual:   result.Count(PriceSourceIndividual),
		Synthetic:    result.Count(PriceSourceSynthetic),
		PresentValue: result.Snapshot.Totals.PresentValue,
		GainLoss:     result.Snapshot.Totals.GainLoss,
	})

	if result.Degraded() {
		degraded := make([]string, 0)
		for _, p := range result.Snapshot.Positions {
			if p.Degraded {
				degraded = append(degraded, p.Symbol)
			}
		}
		s.emit(&events.RefreshDegradedData{RunID: result.RunID, Symbols: degraded})
	}

	return result, nil
}

// Recompute rebuilds the snapshot from the current positions without network access
func (s *Service) Recompute() Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.publish(RecomputeSnapshot(s.current.Load().Positions))
}

// publish stores snap as the current snapshot and returns a caller-owned copy
func (s *Service) publish(snap Snapshot) Snapshot {
	stored := snap
	stored.Positions = ClonePositions(snap.Positions)
	s.current.Store(&stored)
	return snap
}

func (s *Service) emit(data events.EventData) {
	if s.events == nil {
		return
	}
	s.events.EmitTyped("portfolio", data)
}
