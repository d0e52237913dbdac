package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Message is the canonical chat message fanned out to subscribers.
// Values are copied on publish and never mutated afterwards.
type Message struct {
	ID      uuid.UUID
	RoomID  int64
	Sender  string
	Kind    string
	Content string
	SentAt  time.Time
}

// MessageFromStore converts a persisted record into the broadcast form.
func MessageFromStore(m *store.Message) (Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:      id,
		RoomID:  m.RoomID,
		Sender:  m.Sender,
		Kind:    m.Kind,
		Content: m.Content,
		SentAt:  m.SentAt,
	}, nil
}
