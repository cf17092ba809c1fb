package portfolio

import (
	"context"
	"errors"
	"time"
)

// ErrNoValidSymbols is returned when a refresh finds nothing it can look up.
// The positions are left unchanged.
var ErrNoValidSymbols = errors.New("no valid symbols to refresh")

// RefreshResult describes one completed price refresh
type RefreshResult struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Snapshot   Snapshot               `json:"snapshot"`
	States     map[string]PriceSource `json:"states"`
	BatchError string                 `json:"batch_error,omitempty"`
}

// Count returns how many symbols ended in the given state
func (r RefreshResult) Count(state PriceSource) int {
	n := 0
	for _, s := range r.States {
		if s == state {
			n++
		}
	}
	return n
}

// Degraded reports whether any symbol fell back to synthetic data
func (r RefreshResult) Degraded() bool {
	return r.Count(PriceSourceSynthetic) > 0
}

// Refresher fetches new prices for a position set and returns the recomputed snapshot.
// Defined here to avoid an import cycle with the quotes package.
type Refresher interface {
	Refresh(ctx context.Context, positions []Position) (RefreshResult, error)
}

// RunRecorder persists refresh results
type RunRecorder interface {
	Record(ctx context.Context, result RefreshResult) error
}
