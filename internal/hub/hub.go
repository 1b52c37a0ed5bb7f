// Package hub fans status updates out to server-sent-event subscribers.
// It is an in-process broadcast: the scheduler publishes one message per
// tick and each connected client gets its own buffered channel.
package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// subscriberBuffer bounds each client's backlog. A client that falls this
// far behind starts losing intermediate updates; the next publish still
// reaches it, so the stream converges on the current state.
const subscriberBuffer = 8

// Hub broadcasts JSON-encoded payloads to subscribers.
type Hub struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]chan []byte
	last   []byte
}

func New() *Hub {
	return &Hub{subs: make(map[int64]chan []byte)}
}

// Subscribe registers a client. The returned channel immediately carries
// the last published payload, if any, so new clients render without
// waiting for the next tick. Call cancel to unregister.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	if h.last != nil {
		ch <- h.last
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish encodes the payload and delivers it to every subscriber.
// Delivery never blocks: a full subscriber buffer drops the update.
func (h *Hub) Publish(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("hub: failed to encode payload: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for _, ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
