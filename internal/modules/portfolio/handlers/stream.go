package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/portfolio"
)

const streamWriteTimeout = 10 * time.Second

// snapshotMessage is the "SNAPSHOT" type used for the initial frame
const snapshotMessage = "SNAPSHOT"

// streamMessage is one websocket frame. Snapshot is attached to events that change the
// portfolio.
type streamMessage struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Snapshot  *portfolio.Snapshot    `json:"snapshot,omitempty"`
}

// HandleStream upgrades to a websocket, sends the current snapshot and then forwards
// events until the client disconnects
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	// The server write timeout would otherwise close the socket
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Debug().Err(err).Msg("Failed to clear write deadline")
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// The request timeout middleware would cut the stream; the client close ends it instead.
	// CloseRead handles control frames and cancels ctx once the peer closes.
	ctx := conn.CloseRead(context.WithoutCancel(r.Context()))

	eventsCh, cancel := h.events.Subscribe()
	defer cancel()

	snap := h.service.Snapshot()
	if err := h.writeFrame(ctx, conn, streamMessage{
		Type:      snapshotMessage,
		Timestamp: time.Now(),
		Snapshot:  &snap,
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-eventsCh:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event stream closed")
				return
			}
			msg := streamMessage{
				Type:      string(event.Type),
				Timestamp: event.Timestamp,
				Data:      event.Data,
			}
			if changesPortfolio(event.Type) {
				snap := h.service.Snapshot()
				msg.Snapshot = &snap
			}
			if err := h.writeFrame(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeFrame(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		h.log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write stream frame")
		return err
	}
	return nil
}

func changesPortfolio(t events.EventType) bool {
	switch t {
	case events.PortfolioLoaded, events.PortfolioImported, events.PricesRefreshed, events.RefreshDegraded:
		return true
	}
	return false
}
