package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)          // Snapshot with positions, sectors and totals
		r.Get("/positions", h.HandleGetPositions) // Positions only
		r.Get("/sectors", h.HandleGetSectors)     // Sector aggregates

		r.Post("/refresh", h.HandleRefresh)     // Fetch new prices
		r.Post("/recompute", h.HandleRecompute) // Rebuild derived values offline
		r.Post("/import", h.HandleImport)       // Replace from spreadsheet upload

		r.Get("/export.csv", h.HandleExportCSV)
		r.Get("/stream", h.HandleStream) // WebSocket snapshot updates

		r.Get("/refresh-runs", h.HandleGetRefreshRuns)
		r.Get("/resolve", h.HandleResolveSymbol)
	})
}
