package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/events"
)

const heartbeatInterval = 30 * time.Second

// EventsStreamHandler streams events to clients over Server-Sent Events
type EventsStreamHandler struct {
	source    EventSource
	log       zerolog.Logger
	heartbeat time.Duration
}

// NewEventsStreamHandler creates a new SSE handler
func NewEventsStreamHandler(source EventSource, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		source:    source,
		log:       log.With().Str("component", "events_stream").Logger(),
		heartbeat: heartbeatInterval,
	}
}

// ServeHTTP handles GET /api/events/stream?types=A,B
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// The server write timeout would otherwise end the stream
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Debug().Err(err).Msg("Failed to clear write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	allowedTypes := parseTypesFilter(r.URL.Query().Get("types"))

	eventsCh, cancel := h.source.Subscribe()
	defer cancel()

	h.log.Info().Int("types", len(allowedTypes)).Msg("Client connected to event stream")

	// Detach from the request timeout; the client disconnect ends the stream
	ctx, stop := context.WithCancel(context.WithoutCancel(r.Context()))
	defer stop()
	go func() {
		select {
		case <-r.Context().Done():
			if errors.Is(r.Context().Err(), context.Canceled) {
				stop()
			}
		case <-ctx.Done():
		}
	}()

	if err := h.send(w, flusher, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if allowedTypes != nil && !allowedTypes[event.Type] {
				continue
			}
			if err := h.send(w, flusher, map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			}); err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}

		case <-heartbeat.C:
			if err := h.send(w, flusher, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}); err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) send(w http.ResponseWriter, flusher http.Flusher, payload map[string]interface{}) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(payload)); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (h *EventsStreamHandler) encodeEvent(event map[string]interface{}) string {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}

// parseTypesFilter returns nil when no filter was given
func parseTypesFilter(raw string) map[events.EventType]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(strings.ToUpper(t))] = true
		}
	}
	return allowed
}
