package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	PortfolioLoaded   EventType = "PORTFOLIO_LOADED"
	PortfolioImported EventType = "PORTFOLIO_IMPORTED"
	PricesRefreshed   EventType = "PRICES_REFRESHED"
	RefreshDegraded   EventType = "REFRESH_DEGRADED"
	BackupCompleted   EventType = "BACKUP_COMPLETED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// subscriberBuffer is the per-subscriber channel capacity.
// Events are dropped for subscribers that fall this far behind.
const subscriberBuffer = 16

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager logs events and fans them out to subscribers
type Manager struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	log         zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		subscribers: make(map[int]chan Event),
		log:         log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			m.log.Warn().Int("subscriber", id).Str("event_type", string(eventType)).Msg("Subscriber lagging, event dropped")
		}
	}
}

// EmitTyped emits an event built from a typed payload
func (m *Manager) EmitTyped(module string, data EventData) {
	m.Emit(data.EventType(), module, toMap(data))
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}

// Subscribe registers a listener. The returned cancel function must be called to release it.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, subscriberBuffer)
	m.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

func toMap(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{"marshal_error": err.Error()}
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{"marshal_error": err.Error()}
	}
	return out
}
