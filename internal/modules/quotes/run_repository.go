package quotes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/holdings/internal/modules/portfolio"
)

// runTimeLayout has fixed-width fractional seconds so stored timestamps sort as text
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is a stored summary of one refresh
type Run struct {
	ID              string                           `json:"id"`
	StartedAt       time.Time                        `json:"started_at"`
	FinishedAt      time.Time                        `json:"finished_at"`
	Symbols         int                              `json:"symbols"`
	BatchCount      int                              `json:"batch_count"`
	IndividualCount int                              `json:"individual_count"`
	SyntheticCount  int                              `json:"synthetic_count"`
	BatchError      string                           `json:"batch_error,omitempty"`
	States          map[string]portfolio.PriceSource `json:"states"`
}

// RunRepository stores refresh run history. Per-symbol states are kept as a msgpack blob.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new refresh run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "refresh_run").Logger(),
	}
}

// Record stores a completed refresh
func (r *RunRepository) Record(ctx context.Context, result portfolio.RefreshResult) error {
	states := make(map[string]string, len(result.States))
	for symbol, state := range result.States {
		states[symbol] = string(state)
	}
	blob, err := msgpack.Marshal(states)
	if err != nil {
		return fmt.Errorf("failed to encode refresh states: %w", err)
	}

	var batchError interface{}
	if result.BatchError != "" {
		batchError = result.BatchError
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO refresh_runs
		(id, started_at, finished_at, symbols, batch_count, individual_count, synthetic_count, batch_error, states)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.StartedAt.UTC().Format(runTimeLayout),
		result.FinishedAt.UTC().Format(runTimeLayout),
		len(result.States),
		result.Count(portfolio.PriceSourceBatch),
		result.Count(portfolio.PriceSourceIndividual),
		result.Count(portfolio.PriceSourceSynthetic),
		batchError,
		blob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh run %s: %w", result.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, started_at, finished_at, symbols, batch_count,
		individual_count, synthetic_count, batch_error, states
		FROM refresh_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refresh run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refresh runs: %w", err)
	}

	return runs, nil
}

// Prune deletes runs started before cutoff and returns how many were removed
func (r *RunRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM refresh_runs WHERE started_at < ?",
		cutoff.UTC().Format(runTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune refresh runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned refresh runs")
	}
	return n, nil
}

func (r *RunRepository) scanRun(rows *sql.Rows) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt string
		batchError sql.NullString
		blob       []byte
	)

	if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Symbols, &run.BatchCount,
		&run.IndividualCount, &run.SyntheticCount, &batchError, &blob); err != nil {
		return Run{}, err
	}

	var err error
	if run.StartedAt, err = time.Parse(runTimeLayout, startedAt); err != nil {
		return Run{}, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if run.FinishedAt, err = time.Parse(runTimeLayout, finishedAt); err != nil {
		return Run{}, fmt.Errorf("invalid finished_at %q: %w", finishedAt, err)
	}
	run.BatchError = batchError.String

	run.States = make(map[string]portfolio.PriceSource)
	if len(blob) > 0 {
		var states map[string]string
		if err := msgpack.Unmarshal(blob, &states); err != nil {
			return Run{}, fmt.Errorf("failed to decode states for run %s: %w", run.ID, err)
		}
		for symbol, state := range states {
			run.States[symbol] = portfolio.PriceSource(state)
		}
	}

	return run, nil
}
