package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeMembers is an in-memory Membership keyed by room then user.
type fakeMembers struct {
	mu      sync.Mutex
	members map[int64]map[int64]bool
	err     error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{members: make(map[int64]map[int64]bool)}
}

func (f *fakeMembers) add(userID, roomID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[roomID] == nil {
		f.members[roomID] = make(map[int64]bool)
	}
	f.members[roomID][userID] = true
}

func (f *fakeMembers) IsMember(_ context.Context, userID, roomID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.members[roomID][userID], nil
}

// fakeMessages assigns IDs like the sqlite store does.
type fakeMessages struct {
	mu    sync.Mutex
	names map[int64]string
	saved []store.Message
	err   error
}

func (f *fakeMessages) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	msg.ID = uuid.NewString()
	msg.SentAt = time.Now().UTC()
	msg.Sender = f.names[msg.UserID]
	f.saved = append(f.saved, *msg)
	return nil
}

func (f *fakeMessages) ListMessages(_ context.Context, roomID int64, _ int) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for i := range f.saved {
		if f.saved[i].RoomID == roomID {
			m := f.saved[i]
			out = append(out, &m)
		}
	}
	return out, nil
}

func staticRooms(rooms map[string]int64) RoomResolver {
	return RoomResolverFunc(func(_ context.Context, ref string) (int64, error) {
		id, ok := rooms[ref]
		if !ok {
			return 0, ErrRoomNotFound
		}
		return id, nil
	})
}

func textMessage(content string) Message {
	return Message{ID: uuid.New(), Kind: "text", Content: content, SentAt: time.Now()}
}

func mustNext(t *testing.T, sub *Subscriber) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("expected message, got error %v", err)
	}
	return msg
}

func mustNotReceive(t *testing.T, sub *Subscriber) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	msg, err := sub.Next(ctx)
	if err == nil {
		t.Fatalf("expected no message, got %+v", msg)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
