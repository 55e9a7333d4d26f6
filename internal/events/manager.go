// Package events is a small in-process publish/subscribe bus used to fan
// out cross-component notifications (cluster lifecycle, agent conflicts,
// window emissions) without coupling publishers to subscribers directly.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Manager fans out published events to every currently subscribed channel.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	log         zerolog.Logger
}

// New constructs an empty Manager.
func New(log zerolog.Logger) *Manager {
	return &Manager{
		subscribers: make(map[int]chan Event),
		log:         log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. The channel is buffered so a slow subscriber cannot
// block Publish; events are dropped (and logged) for a subscriber whose
// buffer is full.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, 64)
	m.subscribers[id] = ch

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish fans out ev to every current subscriber without blocking on any
// one of them.
func (m *Manager) Publish(ev Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			m.log.Warn().Int("subscriber", id).Str("kind", string(ev.Kind)).Msg("event dropped, subscriber buffer full")
		}
	}
}

// SubscriberCount reports the number of active subscribers (for health
// reporting).
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}
