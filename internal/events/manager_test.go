package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EmitLogsEvent(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(zerolog.New(&buf))

	m.Emit(PricesRefreshed, "portfolio", map[string]interface{}{"symbols": 3})

	out := buf.String()
	assert.Contains(t, out, `"event_type":"PRICES_REFRESHED"`)
	assert.Contains(t, out, `"module":"portfolio"`)
	assert.Contains(t, out, `"symbols":3`)
}

func TestManager_SubscribeReceivesEvents(t *testing.T) {
	m := NewManager(zerolog.Nop())
	ch, cancel := m.Subscribe()
	defer cancel()

	m.EmitTyped("portfolio", &PortfolioImportedData{Source: "holdings.xlsx", Positions: 4})

	select {
	case ev := <-ch:
		assert.Equal(t, PortfolioImported, ev.Type)
		assert.Equal(t, "portfolio", ev.Module)
		assert.Equal(t, "holdings.xlsx", ev.Data["source"])
		assert.Equal(t, float64(4), ev.Data["positions"])
	default:
		t.Fatal("expected an event")
	}
}

func TestManager_CancelRemovesSubscriber(t *testing.T) {
	m := NewManager(zerolog.Nop())
	ch, cancel := m.Subscribe()
	require.Equal(t, 1, m.SubscriberCount())

	cancel()
	cancel()
	assert.Equal(t, 0, m.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Emitting with no subscribers must not block
	m.Emit(PortfolioLoaded, "portfolio", nil)
}

func TestManager_LaggingSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager(zerolog.Nop())
	_, cancel := m.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer*2; i++ {
		m.Emit(PricesRefreshed, "portfolio", nil)
	}
}

func TestManager_EmitError(t *testing.T) {
	m := NewManager(zerolog.Nop())
	ch, cancel := m.Subscribe()
	defer cancel()

	m.EmitError("quotes", errors.New("upstream down"), map[string]interface{}{"symbol": "INFY.NS"})

	ev := <-ch
	assert.Equal(t, ErrorOccurred, ev.Type)
	assert.Equal(t, "upstream down", ev.Data["error"])
}
