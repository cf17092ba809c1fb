package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/aristath/holdings/internal/modules/portfolio"
)

// exportRow is one CSV line of the holdings export
type exportRow struct {
	Symbol         string  `csv:"Symbol"`
	Name           string  `csv:"Particulars"`
	Exchange       string  `csv:"NSE/BSE"`
	Sector         string  `csv:"Sector"`
	PurchasePrice  float64 `csv:"Purchase Price"`
	Quantity       float64 `csv:"Qty"`
	Investment     float64 `csv:"Investment"`
	PortfolioPct   float64 `csv:"Portfolio (%)"`
	CurrentPrice   float64 `csv:"CMP"`
	PresentValue   float64 `csv:"Present Value"`
	GainLoss       float64 `csv:"Gain/Loss"`
	PERatio        string  `csv:"P/E Ratio"`
	LatestEarnings string  `csv:"Latest Earnings"`
	PriceSource    string  `csv:"Price Source"`
	Degraded       bool    `csv:"Degraded"`
}

func toExportRows(positions []portfolio.Position) []*exportRow {
	rows := make([]*exportRow, 0, len(positions))
	for _, p := range positions {
		row := &exportRow{
			Symbol:        p.Symbol,
			Name:          p.Name,
			Exchange:      string(p.Exchange),
			Sector:        p.Sector,
			PurchasePrice: p.PurchasePrice,
			Quantity:      p.Quantity,
			Investment:    p.Investment,
			PortfolioPct:  p.PortfolioPct,
			CurrentPrice:  p.CurrentPrice,
			PresentValue:  p.PresentValue,
			GainLoss:      p.GainLoss,
			PriceSource:   string(p.PriceSource),
			Degraded:      p.Degraded,
		}
		if p.PERatio != nil {
			row.PERatio = fmt.Sprintf("%.2f", *p.PERatio)
		}
		if p.LatestEarnings != nil {
			row.LatestEarnings = *p.LatestEarnings
		}
		rows = append(rows, row)
	}
	return rows
}

// HandleExportCSV writes the current positions as a CSV attachment
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	rows := toExportRows(h.service.Snapshot().Positions)

	body, err := gocsv.MarshalString(&rows)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode CSV export")
		h.writeError(w, http.StatusInternalServerError, "failed to encode export")
		return
	}

	filename := fmt.Sprintf("holdings-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
