package portfolio

import (
	"time"

	"github.com/aristath/holdings/internal/domain"
)

// DefaultSector is assigned to holdings without a sector tag
const DefaultSector = "Others"

// PriceSource records where a position's current price came from
type PriceSource string

const (
	PriceSourceImport     PriceSource = "import"
	PriceSourcePending    PriceSource = "pending"
	PriceSourceBatch      PriceSource = "batch"
	PriceSourceIndividual PriceSource = "individual"
	PriceSourceSynthetic  PriceSource = "synthetic"
)

// Position is a single holding.
// Investment, PresentValue, GainLoss and PortfolioPct are derived; use Recalculate and
// RecomputeSnapshot rather than assigning them directly.
type Position struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Exchange       domain.Exchange `json:"exchange"`
	Sector         string          `json:"sector"`
	PurchasePrice  float64         `json:"purchase_price"`
	Quantity       float64         `json:"quantity"`
	Investment     float64         `json:"investment"`
	CurrentPrice   float64         `json:"current_price"`
	PresentValue   float64         `json:"present_value"`
	GainLoss       float64         `json:"gain_loss"`
	PortfolioPct   float64         `json:"portfolio_pct"`
	PERatio        *float64        `json:"pe_ratio,omitempty"`
	LatestEarnings *string         `json:"latest_earnings,omitempty"`
	PriceSource    PriceSource     `json:"price_source"`
	Degraded       bool            `json:"degraded"`
	PriceUpdatedAt *time.Time      `json:"price_updated_at,omitempty"`
}

// SectorSummary aggregates the positions sharing a sector tag
type SectorSummary struct {
	Sector            string  `json:"sector"`
	Positions         int     `json:"positions"`
	TotalInvestment   float64 `json:"total_investment"`
	TotalPresentValue float64 `json:"total_present_value"`
	TotalGainLoss     float64 `json:"total_gain_loss"`
}

// Totals holds portfolio-wide aggregates
type Totals struct {
	Positions    int     `json:"positions"`
	Investment   float64 `json:"investment"`
	PresentValue float64 `json:"present_value"`
	GainLoss     float64 `json:"gain_loss"`
	GainLossPct  float64 `json:"gain_loss_pct"`
	Degraded     int     `json:"degraded"`
}

// Snapshot is an immutable view of the portfolio at one point in time.
// A new Snapshot is built by every recomputation; existing ones are never modified.
type Snapshot struct {
	Positions   []Position      `json:"positions"`
	Sectors     []SectorSummary `json:"sectors"`
	Totals      Totals          `json:"totals"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ClonePositions returns a copy of positions that can be modified without affecting the input
func ClonePositions(positions []Position) []Position {
	if positions == nil {
		return nil
	}
	out := make([]Position, len(positions))
	copy(out, positions)
	return out
}
