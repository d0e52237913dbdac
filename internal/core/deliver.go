package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Sink is the write side of one stream connection.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Deliver forwards every message for sub to sink until sending fails, the
// subscriber is closed or ctx ends. It always unsubscribes before
// returning; that is the only cleanup path for a subscriber.
// A nil return means the stream ended normally.
func Deliver(ctx context.Context, hub *Hub, sub *Subscriber, sink Sink, logger *zerolog.Logger) error {
	defer hub.Unsubscribe(sub)

	var seenLag uint64
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSubscriberClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if lag := sub.Lagged(); lag != seenLag {
			logger.Debug().
				Int64("room_id", hub.RoomID()).
				Uint64("subscriber_id", sub.ID()).
				Uint64("dropped", lag-seenLag).
				Msg("subscriber skipped messages")
			seenLag = lag
		}

		if err := sink.Send(ctx, msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
}
