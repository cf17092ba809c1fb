package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
)

// PositionRepository handles position database operations.
// Only input fields are stored; derived values are recomputed after loading.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

const positionColumns = `id, symbol, name, exchange, sector, purchase_price, quantity,
	current_price, pe_ratio, latest_earnings, price_source, degraded, price_updated_at`

// GetAll returns all positions in their stored order
func (r *PositionRepository) GetAll(ctx context.Context) ([]Position, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+positionColumns+" FROM positions ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		pos, err := r.scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, Recalculate(pos))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// ReplaceAll swaps the stored position set for positions in one transaction
func (r *PositionRepository) ReplaceAll(ctx context.Context, positions []Position) error {
	now := time.Now().UTC().Format(time.RFC3339)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM positions"); err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO positions
			(id, seq, symbol, name, exchange, sector, purchase_price, quantity,
			 current_price, pe_ratio, latest_earnings, price_source, degraded, price_updated_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range positions {
			_, err := stmt.ExecContext(ctx,
				p.ID, i, p.Symbol, p.Name, string(p.Exchange), p.Sector, p.PurchasePrice, p.Quantity,
				p.CurrentPrice, nullFloat(p.PERatio), nullString(p.LatestEarnings),
				string(p.PriceSource), p.Degraded, nullTime(p.PriceUpdatedAt), now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Int("count", len(positions)).Msg("Replaced positions")
	return nil
}

// UpdatePrices stores the refreshed market fields of positions.
// Positions that are no longer stored are ignored.
func (r *PositionRepository) UpdatePrices(ctx context.Context, positions []Position) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE positions SET
			current_price = ?, pe_ratio = ?, latest_earnings = ?, price_source = ?,
			degraded = ?, price_updated_at = ?
			WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare update: %w", err)
		}
		defer stmt.Close()

		for _, p := range positions {
			if _, err := stmt.ExecContext(ctx,
				p.CurrentPrice, nullFloat(p.PERatio), nullString(p.LatestEarnings),
				string(p.PriceSource), p.Degraded, nullTime(p.PriceUpdatedAt), p.ID,
			); err != nil {
				return fmt.Errorf("failed to update price for %s: %w", p.Symbol, err)
			}
		}
		return nil
	})
}

// Count returns the number of stored positions
func (r *PositionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM positions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return n, nil
}

func (r *PositionRepository) scanPosition(rows *sql.Rows) (Position, error) {
	var (
		pos            Position
		exchange       string
		priceSource    string
		peRatio        sql.NullFloat64
		latestEarnings sql.NullString
		priceUpdatedAt sql.NullString
	)

	err := rows.Scan(
		&pos.ID, &pos.Symbol, &pos.Name, &exchange, &pos.Sector, &pos.PurchasePrice, &pos.Quantity,
		&pos.CurrentPrice, &peRatio, &latestEarnings, &priceSource, &pos.Degraded, &priceUpdatedAt,
	)
	if err != nil {
		return Position{}, err
	}

	pos.Exchange = domain.Exchange(exchange)
	pos.PriceSource = PriceSource(priceSource)
	if peRatio.Valid {
		v := peRatio.Float64
		pos.PERatio = &v
	}
	if latestEarnings.Valid {
		s := latestEarnings.String
		pos.LatestEarnings = &s
	}
	if priceUpdatedAt.Valid && priceUpdatedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, priceUpdatedAt.String); err == nil {
			pos.PriceUpdatedAt = &t
		} else {
			r.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Ignoring unparseable price timestamp")
		}
	}

	return pos, nil
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339)
}
