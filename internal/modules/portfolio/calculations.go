package portfolio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ErrNonFinite is returned when a calculation input is NaN or infinite
var ErrNonFinite = errors.New("non-finite input")

// Investment returns the cost basis of a holding. Inputs whose product overflows are
// rejected like NaN or infinite inputs.
func Investment(purchasePrice, quantity float64) (float64, error) {
	v := purchasePrice * quantity
	if !isFinite(purchasePrice) || !isFinite(quantity) || !isFinite(v) {
		return 0, fmt.Errorf("investment of %v x %v: %w", purchasePrice, quantity, ErrNonFinite)
	}
	return v, nil
}

// PresentValue returns the market value of a holding
func PresentValue(currentPrice, quantity float64) float64 {
	return currentPrice * quantity
}

// GainLoss returns the unrealized gain (negative for a loss)
func GainLoss(presentValue, investment float64) float64 {
	return presentValue - investment
}

// PortfolioWeight returns presentValue as a percentage of totalPresentValue.
// A non-positive total yields 0.
func PortfolioWeight(presentValue, totalPresentValue float64) float64 {
	if totalPresentValue <= 0 {
		return 0
	}
	return presentValue / totalPresentValue * 100
}

// RecalculateChecked is Recalculate for untrusted input. It returns ErrNonFinite when any
// derived value would be NaN or infinite.
func RecalculateChecked(p Position) (Position, error) {
	investment, err := Investment(p.PurchasePrice, p.Quantity)
	if err != nil {
		return p, err
	}
	presentValue := PresentValue(p.CurrentPrice, p.Quantity)
	gainLoss := GainLoss(presentValue, investment)
	if !isFinite(presentValue) || !isFinite(gainLoss) {
		return p, fmt.Errorf("present value of %v x %v: %w", p.CurrentPrice, p.Quantity, ErrNonFinite)
	}

	p.Investment = investment
	p.PresentValue = presentValue
	p.GainLoss = gainLoss
	return p, nil
}

// Recalculate returns p with investment, present value and gain/loss derived from its
// purchase price, quantity and current price. A non-finite investment is stored as 0.
func Recalculate(p Position) Position {
	investment, err := Investment(p.PurchasePrice, p.Quantity)
	if err != nil {
		investment = 0
	}
	p.Investment = investment
	p.PresentValue = PresentValue(p.CurrentPrice, p.Quantity)
	p.GainLoss = GainLoss(p.PresentValue, p.Investment)
	return p
}

// RecomputeSnapshot builds a new snapshot from positions in a single full pass.
// The input slice is not modified.
func RecomputeSnapshot(positions []Position) Snapshot {
	out := make([]Position, len(positions))
	presentValues := make([]float64, len(positions))
	investments := make([]float64, len(positions))
	degraded := 0

	for i, p := range positions {
		out[i] = Recalculate(p)
		presentValues[i] = out[i].PresentValue
		investments[i] = out[i].Investment
		if out[i].Degraded {
			degraded++
		}
	}

	totalPV := floats.Sum(presentValues)
	totalInvestment := floats.Sum(investments)

	for i := range out {
		out[i].PortfolioPct = PortfolioWeight(out[i].PresentValue, totalPV)
	}

	totals := Totals{
		Positions:    len(out),
		Investment:   totalInvestment,
		PresentValue: totalPV,
		GainLoss:     GainLoss(totalPV, totalInvestment),
		Degraded:     degraded,
	}
	if totalInvestment > 0 {
		totals.GainLossPct = totals.GainLoss / totalInvestment * 100
	}

	return Snapshot{
		Positions:   out,
		Sectors:     GroupBySector(out),
		Totals:      totals,
		GeneratedAt: time.Now().UTC(),
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
