package http

import (
	"context"
	"sync"
	"sync/atomic"
)

// Streams tracks open room streams so they can be closed on shutdown.
// Hijacked connections are invisible to http.Server.Shutdown.
type Streams struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewStreams creates an open tracker.
func NewStreams() *Streams {
	ctx, cancel := context.WithCancel(context.Background())
	return &Streams{ctx: ctx, cancel: cancel}
}

// acquire registers a stream; release must be called once it has
// finished. ok is false after shutdown started.
func (s *Streams) acquire() (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	s.wg.Add(1)
	s.active.Add(1)

	return func() {
		s.active.Add(-1)
		s.wg.Done()
	}, true
}

// bind derives a context that is also cancelled when shutdown starts.
func (s *Streams) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Active returns the number of open streams.
func (s *Streams) Active() int {
	return int(s.active.Load())
}

// ShuttingDown reports whether shutdown has started.
func (s *Streams) ShuttingDown() bool {
	return s.ctx.Err() != nil
}

func (s *Streams) stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Close cancels every open stream and waits for their delivery loops to
// exit, or for ctx to be done.
func (s *Streams) Close(ctx context.Context) error {
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
