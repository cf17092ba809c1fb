package portfolio

import "github.com/aristath/holdings/internal/domain"

// DefaultPositions returns the built-in portfolio used when no valid holdings are available.
// Each call returns a fresh slice.
func DefaultPositions() []Position {
	pe := func(v float64) *float64 { return &v }
	text := func(s string) *string { return &s }

	positions := []Position{
		{
			ID: "default-1", Symbol: "RELIANCE.NS", Name: "Reliance Industries Ltd", Exchange: domain.ExchangeNSE,
			Sector: "Energy", PurchasePrice: 2500, Quantity: 10, CurrentPrice: 2680,
			PERatio: pe(14.2), LatestEarnings: text("Q3 FY24: ₹18,951 Cr"),
		},
		{
			ID: "default-2", Symbol: "HDFCBANK.NS", Name: "HDFC Bank Ltd", Exchange: domain.ExchangeNSE,
			Sector: "Banking", PurchasePrice: 1500, Quantity: 20, CurrentPrice: 1620,
			PERatio: pe(19.8), LatestEarnings: text("Q3 FY24: ₹16,511 Cr"),
		},
		{
			ID: "default-3", Symbol: "TCS.NS", Name: "Tata Consultancy Services", Exchange: domain.ExchangeNSE,
			Sector: "IT", PurchasePrice: 3800, Quantity: 5, CurrentPrice: 3920,
			PERatio: pe(28.5), LatestEarnings: text("Q3 FY24: ₹11,735 Cr"),
		},
		{
			ID: "default-4", Symbol: "INFY.NS", Name: "Infosys Ltd", Exchange: domain.ExchangeNSE,
			Sector: "IT", PurchasePrice: 1300, Quantity: 15, CurrentPrice: 1380,
			PERatio: pe(25.1), LatestEarnings: text("Q3 FY24: ₹6,586 Cr"),
		},
		{
			ID: "default-5", Symbol: "ICICIBANK.NS", Name: "ICICI Bank Ltd", Exchange: domain.ExchangeNSE,
			Sector: "Banking", PurchasePrice: 950, Quantity: 10, CurrentPrice: 1050,
			PERatio: pe(16.7), LatestEarnings: text("Q3 FY24: ₹10,261 Cr"),
		},
	}

	for i := range positions {
		positions[i].PriceSource = PriceSourceImport
		positions[i] = Recalculate(positions[i])
	}
	return positions
}
