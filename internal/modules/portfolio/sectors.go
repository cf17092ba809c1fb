package portfolio

import "gonum.org/v1/gonum/floats"

// GroupBySector summarizes positions per sector tag.
// Tags are compared exactly as stored and groups appear in first-seen order.
func GroupBySector(positions []Position) []SectorSummary {
	type group struct {
		investments   []float64
		presentValues []float64
	}

	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, p := range positions {
		g, ok := groups[p.Sector]
		if !ok {
			g = &group{}
			groups[p.Sector] = g
			order = append(order, p.Sector)
		}
		g.investments = append(g.investments, p.Investment)
		g.presentValues = append(g.presentValues, p.PresentValue)
	}

	summaries := make([]SectorSummary, 0, len(order))
	for _, sector := range order {
		g := groups[sector]
		investment := floats.Sum(g.investments)
		presentValue := floats.Sum(g.presentValues)
		summaries = append(summaries, SectorSummary{
			Sector:            sector,
			Positions:         len(g.investments),
			TotalInvestment:   investment,
			TotalPresentValue: presentValue,
			TotalGainLoss:     presentValue - investment,
		})
	}

	return summaries
}
