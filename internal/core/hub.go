package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub fans out messages published to one room to every subscriber.
// Publish, Subscribe and Unsubscribe serialize on mu so every subscriber
// observes the same publish order.
type Hub struct {
	roomID   int64
	capacity int
	log      *zerolog.Logger

	mu          sync.Mutex
	nextID      uint64
	subscribers map[uint64]*Subscriber
}

func newHub(roomID int64, capacity int, logger *zerolog.Logger) *Hub {
	return &Hub{
		roomID:      roomID,
		capacity:    capacity,
		log:         logger,
		subscribers: make(map[uint64]*Subscriber),
	}
}

// RoomID returns the room this hub serves.
func (h *Hub) RoomID() int64 {
	return h.roomID
}

// Publish enqueues msg for every current subscriber and returns how many
// received it. A full subscriber queue loses its oldest message instead of
// blocking the publisher.
func (h *Hub) Publish(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subscribers {
		if sub.enqueue(msg) {
			h.log.Debug().
				Int64("room_id", h.roomID).
				Uint64("subscriber_id", id).
				Uint64("lagged", sub.Lagged()).
				Msg("subscriber lagging, dropped oldest message")
		}
	}
	return len(h.subscribers)
}

// Subscribe attaches a new subscriber. It receives only messages published
// after Subscribe returns.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := newSubscriber(h.nextID, h.capacity)
	h.subscribers[sub.id] = sub

	h.log.Debug().Int64("room_id", h.roomID).Uint64("subscriber_id", sub.id).Int("subscribers", len(h.subscribers)).Msg("subscribed")
	return sub
}

// Unsubscribe detaches sub and discards anything still buffered for it.
// Calling it more than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	if cur, ok := h.subscribers[sub.id]; ok && cur == sub {
		delete(h.subscribers, sub.id)
	}
	remaining := len(h.subscribers)
	h.mu.Unlock()

	if sub.close() {
		h.log.Debug().Int64("room_id", h.roomID).Uint64("subscriber_id", sub.id).Int("subscribers", remaining).Msg("unsubscribed")
	}
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
