package core

import (
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// Registry maps room IDs to their hubs. Hubs are created on first access
// and live for the rest of the process; room count is bounded by the rooms
// table, so nothing is ever evicted.
type Registry struct {
	hubs     *xsync.MapOf[int64, *Hub]
	capacity int
	log      *zerolog.Logger
}

// NewRegistry builds an empty registry whose hubs give each subscriber a
// queue of subscriberBuffer messages.
func NewRegistry(subscriberBuffer int, logger *zerolog.Logger) *Registry {
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	return &Registry{
		hubs:     xsync.NewMapOf[int64, *Hub](),
		capacity: subscriberBuffer,
		log:      logger,
	}
}

// Hub returns the room's hub, creating it exactly once under concurrent
// first access.
func (r *Registry) Hub(roomID int64) *Hub {
	hub, loaded := r.hubs.LoadOrCompute(roomID, func() *Hub {
		return newHub(roomID, r.capacity, r.log)
	})
	if !loaded {
		r.log.Debug().Int64("room_id", roomID).Msg("hub created")
	}
	return hub
}

// Lookup returns the hub for roomID without creating one.
func (r *Registry) Lookup(roomID int64) (*Hub, bool) {
	return r.hubs.Load(roomID)
}

// Len returns the number of hubs created so far.
func (r *Registry) Len() int {
	return r.hubs.Size()
}
