// Package realtime fans notification push events out to live client
// connections and tracks which users currently have one. The hub is an
// injectable value with no package-level state, so tests and multi-instance
// deployments each get their own.
package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// Event is what a connected client receives when a notification is pushed.
type Event struct {
	NotificationID int64     `json:"notification_id"`
	Title          string    `json:"title"`
	Severity       string    `json:"severity"`
	CreatedAt      time.Time `json:"created_at"`
}

// subscriberBuffer bounds the per-connection event queue. A client that
// stops draining loses pushes rather than blocking the producer; the
// notification itself is already persisted.
const subscriberBuffer = 8

// Presence answers whether a user has at least one live connection.
// The notification producer consults it to skip pushes nobody would see.
type Presence interface {
	IsOnline(userID int64) bool
	OnlineCount() int
}

// Hub tracks live connections per user and delivers events to them.
type Hub struct {
	mu   sync.Mutex
	subs map[int64]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64]map[chan Event]struct{}),
	}
}

// Subscribe registers a connection for userID and returns the event channel
// plus a cancel func that must be called when the connection closes.
func (h *Hub) Subscribe(userID int64) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers the event to every live connection of userID. Sends are
// non-blocking; a full subscriber buffer drops the event for that
// connection.
func (h *Hub) Publish(userID int64, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- event:
		default:
			slog.Debug("Dropping push event for slow subscriber",
				"user_id", userID,
				"notification_id", event.NotificationID)
		}
	}
}

// IsOnline reports whether userID has at least one live connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID]) > 0
}

// OnlineCount returns the number of distinct users with a live connection.
func (h *Hub) OnlineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var _ Presence = (*Hub)(nil)
