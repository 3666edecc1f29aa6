package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultHistorySize is how many recent events the manager keeps.
const DefaultHistorySize = 100

// Manager logs events, keeps the most recent ones and fans them out to
// subscribers. A subscriber that does not keep up misses events.
type Manager struct {
	mu      sync.RWMutex
	history []Event
	next    int
	full    bool
	subs    map[int]chan Event
	subSeq  int
	dropped uint64
	now     func() time.Time
	log     zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(size int, log zerolog.Logger) *Manager {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Manager{
		history: make([]Event, size),
		subs:    make(map[int]chan Event),
		now:     time.Now,
		log:     log.With().Str("service", "events").Logger(),
	}
}

// Emit records an event for data
func (m *Manager) Emit(module string, data EventData) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      data.EventType(),
		Timestamp: m.now(),
		Module:    module,
		Data:      data,
	}

	eventJSON, err := json.Marshal(&event)
	if err != nil {
		m.log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to encode event")
	} else {
		m.log.Debug().
			Str("event_type", string(event.Type)).
			Str("module", module).
			RawJSON("event", eventJSON).
			Msg("Event emitted")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.history[m.next] = event
	m.next = (m.next + 1) % len(m.history)
	if m.next == 0 {
		m.full = true
	}

	for _, ch := range m.subs {
		select {
		case ch <- event:
		default:
			m.dropped++
		}
	}
	return event
}

// Recent returns up to limit events, oldest first. limit <= 0 returns all kept events.
func (m *Manager) Recent(limit int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ordered []Event
	if m.full {
		ordered = append(ordered, m.history[m.next:]...)
	}
	ordered = append(ordered, m.history[:m.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	if ordered == nil {
		ordered = []Event{}
	}
	return ordered
}

// Subscribe returns a channel receiving every event emitted from now on and
// a function that removes the subscription and closes the channel.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	m.mu.Lock()
	id := m.subSeq
	m.subSeq++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions
func (m *Manager) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full
func (m *Manager) Dropped() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dropped
}
