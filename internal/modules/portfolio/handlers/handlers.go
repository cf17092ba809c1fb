// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/ingest"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/aristath/holdings/internal/modules/quotes"
)

const (
	maxUploadSize   = 10 << 20
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// PortfolioService is the subset of portfolio.Service used by the handlers
type PortfolioService interface {
	Snapshot() portfolio.Snapshot
	Replace(ctx context.Context, positions []portfolio.Position) (portfolio.Snapshot, error)
	Refresh(ctx context.Context) (portfolio.RefreshResult, error)
	Recompute() portfolio.Snapshot
}

// FileIngester turns an uploaded spreadsheet into positions
type FileIngester interface {
	IngestFile(filename string, r io.Reader) ingest.Result
}

// RunLister lists stored refresh runs
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]quotes.Run, error)
}

// EventBus publishes and streams events
type EventBus interface {
	EmitTyped(module string, data events.EventData)
	Subscribe() (<-chan events.Event, func())
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service  PortfolioService
	ingester FileIngester
	runs     RunLister
	events   EventBus
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	service PortfolioService,
	ingester FileIngester,
	runs RunLister,
	eventBus EventBus,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		ingester: ingester,
		runs:     runs,
		events:   eventBus,
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

// importResponse is returned by HandleImport
type importResponse struct {
	Strategy     ingest.Strategy    `json:"strategy"`
	UsedDefaults bool               `json:"used_defaults"`
	Dropped      int                `json:"dropped"`
	Message      string             `json:"message,omitempty"`
	Snapshot     portfolio.Snapshot `json:"snapshot"`
}

// HandleGetPortfolio returns the current snapshot
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Snapshot())
}

// HandleGetPositions returns the current positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Snapshot().Positions)
}

// HandleGetSectors returns per-sector aggregates
func (h *Handler) HandleGetSectors(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Snapshot().Sectors)
}

// HandleRefresh fetches new prices for every position
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, portfolio.ErrNoValidSymbols) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Refresh failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleRecompute rebuilds derived values without fetching prices
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Recompute())
}

// HandleImport replaces the portfolio with an uploaded spreadsheet (multipart field "file").
// Unreadable or unusable files load the default positions; the response says so.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	result := h.ingester.IngestFile(header.Filename, file)

	snap, err := h.service.Replace(r.Context(), result.Positions)
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Failed to store imported positions")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info().
		Str("file", header.Filename).
		Str("strategy", string(result.Strategy)).
		Int("positions", len(snap.Positions)).
		Int("dropped", result.Dropped).
		Msg("Portfolio imported")

	if h.events != nil {
		h.events.EmitTyped("portfolio", &events.PortfolioImportedData{
			Source:       header.Filename,
			Positions:    len(snap.Positions),
			UsedDefaults: result.UsedDefaults,
			Message:      result.Message,
		})
	}

	h.writeJSON(w, http.StatusOK, importResponse{
		Strategy:     result.Strategy,
		UsedDefaults: result.UsedDefaults,
		Dropped:      result.Dropped,
		Message:      result.Message,
		Snapshot:     snap,
	})
}

// HandleGetRefreshRuns returns recent refresh runs, newest first
func (h *Handler) HandleGetRefreshRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list refresh runs")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, runs)
}

// HandleResolveSymbol maps a company name to a ticker symbol
func (h *Handler) HandleResolveSymbol(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	exchange := domain.ParseExchange(r.URL.Query().Get("exchange"))

	h.writeJSON(w, http.StatusOK, map[string]string{
		"name":     name,
		"exchange": string(exchange),
		"symbol":   ingest.ResolveSymbol(name, exchange),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
