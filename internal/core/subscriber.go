package core

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// DefaultSubscriberBuffer is the per-subscriber queue capacity.
const DefaultSubscriberBuffer = 100

// Subscriber is one connection's private inbound queue attached to a hub.
// The hub is the only writer; a single delivery loop is the only reader.
type Subscriber struct {
	id       uint64
	capacity int

	mu     sync.Mutex
	queue  deque.Deque[Message]
	lagged uint64
	closed bool

	notify chan struct{} // cap 1, signalled on enqueue and close
}

func newSubscriber(id uint64, capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = DefaultSubscriberBuffer
	}
	s := &Subscriber{
		id:       id,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
	s.queue.Grow(capacity)
	return s
}

// ID returns the hub-local subscriber identifier.
func (s *Subscriber) ID() uint64 {
	return s.id
}

// Capacity returns the queue bound.
func (s *Subscriber) Capacity() int {
	return s.capacity
}

// enqueue appends msg, evicting the oldest pending message when full.
// It reports whether an eviction happened. Never blocks.
func (s *Subscriber) enqueue(msg Message) (dropped bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.queue.Len() == s.capacity {
		s.queue.PopFront()
		s.lagged++
		dropped = true
	}
	s.queue.PushBack(msg)
	s.mu.Unlock()

	s.wake()
	return dropped
}

func (s *Subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// close discards pending messages and wakes a blocked reader.
func (s *Subscriber) close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.queue.Clear()
	s.mu.Unlock()

	s.wake()
	return true
}

func (s *Subscriber) pop() (Message, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Message{}, false, true
	}
	if s.queue.Len() == 0 {
		return Message{}, false, false
	}
	return s.queue.PopFront(), true, false
}

// Next blocks until a message is available, ctx is done or the subscriber
// is closed (ErrSubscriberClosed).
func (s *Subscriber) Next(ctx context.Context) (Message, error) {
	for {
		msg, ok, closed := s.pop()
		if closed {
			return Message{}, ErrSubscriberClosed
		}
		if ok {
			return msg, nil
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Pending returns the number of buffered, undelivered messages.
func (s *Subscriber) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Lagged returns how many messages were evicted because this subscriber
// fell behind.
func (s *Subscriber) Lagged() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lagged
}

// Closed reports whether the subscriber was unsubscribed.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
