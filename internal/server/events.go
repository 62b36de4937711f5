package server

import (
	"sync"

	"github.com/zot/lua-reload/internal/protocol"
)

const eventBuffer = 64

// EventHub fans out server-push events to subscribers. A backed-up
// subscriber drops events rather than stall the publisher.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]chan *protocol.Message
	closed      bool
}

// NewEventHub creates an event hub.
func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[string]chan *protocol.Message)}
}

// Subscribe registers a subscriber under id and returns its event channel.
func (h *EventHub) Subscribe(id string) <-chan *protocol.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan *protocol.Message, eventBuffer)
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[id] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *EventHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// Publish sends an event to every subscriber.
func (h *EventHub) Publish(e protocol.Event) {
	msg := protocol.NewEvent(e)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Close closes the hub and all subscriber channels.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers (for testing).
func (h *EventHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
