package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Ingestor persists new messages and publishes the stored copy.
type Ingestor struct {
	members  Membership
	messages store.MessageStore
	registry *Registry
	log      *zerolog.Logger
}

// NewIngestor builds the message ingest pipeline.
func NewIngestor(members Membership, messages store.MessageStore, registry *Registry, logger *zerolog.Logger) *Ingestor {
	return &Ingestor{
		members:  members,
		messages: messages,
		registry: registry,
		log:      logger,
	}
}

// Ingest authorizes userID in roomID, persists the message and publishes
// it. Nothing is published unless persistence succeeded, and the returned
// message is the same value every subscriber receives.
func (i *Ingestor) Ingest(ctx context.Context, roomID, userID int64, kind, content string) (Message, error) {
	if !authorize(ctx, i.members, i.log, userID, roomID) {
		return Message{}, ErrNotMember
	}

	record := &store.Message{
		RoomID:  roomID,
		UserID:  userID,
		Kind:    kind,
		Content: content,
	}
	if err := i.messages.SaveMessage(ctx, record); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	msg, err := MessageFromStore(record)
	if err != nil {
		return Message{}, fmt.Errorf("%w: stored message id: %w", ErrPersistence, err)
	}

	delivered := i.registry.Hub(roomID).Publish(msg)
	i.log.Debug().
		Int64("room_id", roomID).
		Str("message_id", msg.ID.String()).
		Int("subscribers", delivered).
		Msg("message published")
	return msg, nil
}
