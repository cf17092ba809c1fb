// Package server provides the HTTP server and routing for the holdings tracker.
package server

import (
	"encoding/json"
	"net/http"
	"time"
)

const serviceVersion = "1.0.0"

// healthResponse is the body of GET /health
type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Service   string    `json:"service"`
	StartedAt time.Time `json:"started_at"`
}

// handleHealth answers liveness probes without touching the database
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   serviceVersion,
		Service:   "holdings",
		StartedAt: s.startedAt,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
