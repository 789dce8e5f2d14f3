// Package feed fans successful redemptions out to live websocket watchers.
package feed

import (
	"sync"

	"github.com/CLDWare/attendance-backend/internal/attendance"
)

// Hub routes MarkEvents to subscribers keyed by session ID. It implements
// attendance.MarkPublisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan attendance.MarkEvent]struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uint]map[chan attendance.MarkEvent]struct{}),
	}
}

// Subscribe registers a watcher for one session and returns its event
// channel. The channel is buffered; a slow consumer loses events rather than
// blocking redemptions.
func (h *Hub) Subscribe(sessionID uint) chan attendance.MarkEvent {
	ch := make(chan attendance.MarkEvent, 16)

	h.mu.Lock()
	if h.subscribers[sessionID] == nil {
		h.subscribers[sessionID] = make(map[chan attendance.MarkEvent]struct{})
	}
	h.subscribers[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes a watcher and closes its channel.
func (h *Hub) Unsubscribe(sessionID uint, ch chan attendance.MarkEvent) {
	h.mu.Lock()
	if subs, ok := h.subscribers[sessionID]; ok {
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, sessionID)
		}
	}
	h.mu.Unlock()
}

// Publish delivers an event to every watcher of its session. Never blocks.
func (h *Hub) Publish(event attendance.MarkEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
