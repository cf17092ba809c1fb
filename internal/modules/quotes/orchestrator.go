package quotes

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/modules/portfolio"
)

// DefaultRequestDelay spaces out per-symbol requests when the batch call fails
const DefaultRequestDelay = 200 * time.Millisecond

// symbolState tracks one symbol through a refresh: pending until the batch call,
// an individual lookup or the synthetic fallback resolves it
type symbolState struct {
	state    portfolio.PriceSource
	price    float64
	peRatio  *float64
	earnings *string
}

func (s *symbolState) resolve(state portfolio.PriceSource, price float64, pe *float64, earnings *string) {
	s.state = state
	s.price = price
	s.peRatio = pe
	s.earnings = earnings
}

// Orchestrator refreshes position prices from a quote source, degrading to synthetic
// prices for symbols the source cannot supply
type Orchestrator struct {
	source    domain.QuoteSource
	synthetic *SyntheticSource
	delay     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	log zerolog.Logger
}

// NewOrchestrator creates a new refresh orchestrator
func NewOrchestrator(
	source domain.QuoteSource,
	synthetic *SyntheticSource,
	delay time.Duration,
	log zerolog.Logger,
) *Orchestrator {
	if synthetic == nil {
		synthetic = NewTimeSeededSyntheticSource()
	}
	if delay < 0 {
		delay = 0
	}
	return &Orchestrator{
		source:    source,
		synthetic: synthetic,
		delay:     delay,
		now:       time.Now,
		sleep:     sleepContext,
		newID:     uuid.NewString,
		log:       log.With().Str("component", "quote_refresh").Logger(),
	}
}

// Refresh fetches prices for every quotable symbol in positions and returns the
// recomputed snapshot. Source failures never fail the refresh; affected positions get
// synthetic prices and are marked degraded. ErrNoValidSymbols is returned when there is
// nothing to look up.
func (o *Orchestrator) Refresh(ctx context.Context, positions []portfolio.Position) (portfolio.RefreshResult, error) {
	startedAt := o.now()

	symbols := QuotableSymbols(positions)
	if len(symbols) == 0 {
		return portfolio.RefreshResult{}, portfolio.ErrNoValidSymbols
	}

	states := make(map[string]*symbolState, len(symbols))
	for _, s := range symbols {
		states[s] = &symbolState{state: portfolio.PriceSourcePending}
	}

	result := portfolio.RefreshResult{
		RunID:     o.newID(),
		StartedAt: startedAt,
	}

	if err := o.resolveBatch(ctx, symbols, states); err != nil {
		result.BatchError = err.Error()
	}

	if pending := pendingSymbols(symbols, states); len(pending) > 0 {
		o.resolveIndividually(ctx, pending, states)
	}

	for _, s := range pendingSymbols(symbols, states) {
		price := o.synthetic.Price(s)
		states[s].resolve(portfolio.PriceSourceSynthetic, price, nil, nil)
		o.log.Warn().Str("symbol", s).Float64("price", price).Msg("Using synthetic price")
	}

	finishedAt := o.now()
	merged := mergeQuotes(positions, states, finishedAt)

	result.FinishedAt = finishedAt
	result.Snapshot = portfolio.RecomputeSnapshot(merged)
	result.States = make(map[string]portfolio.PriceSource, len(states))
	for s, st := range states {
		result.States[s] = st.state
	}

	o.log.Info().
		Str("run_id", result.RunID).
		Int("symbols", len(symbols)).
		Int("batch", result.Count(portfolio.PriceSourceBatch)).
		Int("individual", result.Count(portfolio.PriceSourceIndividual)).
		Int("synthetic", result.Count(portfolio.PriceSourceSynthetic)).
		Dur("duration_ms", finishedAt.Sub(startedAt)).
		Msg("Price refresh completed")

	return result, nil
}

// resolveBatch requests every symbol in one call. Symbols missing from the response or
// carrying an unusable price stay pending. The returned error is the batch call failure.
func (o *Orchestrator) resolveBatch(ctx context.Context, symbols []string, states map[string]*symbolState) error {
	quotes, err := o.source.GetBatch(ctx, symbols)
	if err != nil {
		o.log.Warn().Err(err).Int("symbols", len(symbols)).Msg("Batch quote request failed, falling back to individual requests")
		return err
	}

	for _, q := range quotes {
		st, ok := states[domain.NormalizeSymbol(q.Symbol)]
		if !ok || st.state != portfolio.PriceSourcePending {
			continue
		}
		if !usablePrice(q.Price) {
			o.log.Debug().Str("symbol", q.Symbol).Float64("price", q.Price).Msg("Ignoring unusable batch price")
			continue
		}
		st.resolve(portfolio.PriceSourceBatch, q.Price, q.PERatio, q.Earnings)
	}

	if missing := len(pendingSymbols(symbols, states)); missing > 0 {
		o.log.Info().Int("missing", missing).Msg("Batch response incomplete")
	}
	return nil
}

// resolveIndividually looks up symbols one at a time with a fixed delay between them.
// Cancellation stops the loop; unresolved symbols stay pending.
func (o *Orchestrator) resolveIndividually(ctx context.Context, symbols []string, states map[string]*symbolState) {
	for i, s := range symbols {
		if i > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				o.log.Warn().Err(err).Int("remaining", len(symbols)-i).Msg("Individual lookups interrupted")
				return
			}
		}

		price, err := o.source.GetPrice(ctx, s)
		if err != nil {
			o.log.Warn().Err(err).Str("symbol", s).Msg("Failed to fetch price")
			continue
		}
		if !usablePrice(price) {
			o.log.Warn().Str("symbol", s).Float64("price", price).Msg("Ignoring unusable price")
			continue
		}

		metrics, err := o.source.GetMetrics(ctx, s)
		if err != nil {
			o.log.Debug().Err(err).Str("symbol", s).Msg("Failed to fetch metrics, keeping previous values")
		}
		states[s].resolve(portfolio.PriceSourceIndividual, price, metrics.PERatio, metrics.Earnings)
	}
}

// mergeQuotes applies resolved quotes to copies of positions by symbol. P/E and earnings
// are replaced only when the quote carries them; quantities are never touched.
func mergeQuotes(positions []portfolio.Position, states map[string]*symbolState, at time.Time) []portfolio.Position {
	merged := portfolio.ClonePositions(positions)
	for i := range merged {
		st, ok := states[domain.NormalizeSymbol(merged[i].Symbol)]
		if !ok || st.state == portfolio.PriceSourcePending {
			continue
		}

		p := &merged[i]
		p.CurrentPrice = round2(st.price)
		if st.peRatio != nil && usableRatio(*st.peRatio) {
			pe := round2(*st.peRatio)
			p.PERatio = &pe
		}
		if st.earnings != nil && strings.TrimSpace(*st.earnings) != "" {
			earnings := *st.earnings
			p.LatestEarnings = &earnings
		}
		p.PriceSource = st.state
		p.Degraded = st.state == portfolio.PriceSourceSynthetic
		updatedAt := at.UTC()
		p.PriceUpdatedAt = &updatedAt
	}
	return merged
}

// QuotableSymbols returns the distinct normalized symbols of positions that can be
// sent to a quote source, in first-seen order
func QuotableSymbols(positions []portfolio.Position) []string {
	seen := make(map[string]bool, len(positions))
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		s := domain.NormalizeSymbol(p.Symbol)
		if seen[s] || !domain.IsQuotableSymbol(s) {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	return symbols
}

func pendingSymbols(symbols []string, states map[string]*symbolState) []string {
	var pending []string
	for _, s := range symbols {
		if states[s].state == portfolio.PriceSourcePending {
			pending = append(pending, s)
		}
	}
	return pending
}

func usablePrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func usableRatio(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
