package friends

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return New(st), st
}

func createUser(t *testing.T, st *sqlite.SQLiteStore, name string) *store.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), name, name+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func TestFriendRequestFlow(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")

	if _, err := svc.SendRequest(ctx, alice.ID, "alice"); !errors.Is(err, ErrCannotFriendSelf) {
		t.Fatalf("expected ErrCannotFriendSelf, got %v", err)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	receiver, err := svc.SendRequest(ctx, alice.ID, "bob")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if receiver.ID != bob.ID {
		t.Fatalf("expected receiver bob, got %+v", receiver)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, "bob"); !errors.Is(err, ErrRequestAlreadyExists) {
		t.Fatalf("expected ErrRequestAlreadyExists, got %v", err)
	}

	pending, err := svc.ListPendingRequests(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].SenderUUID != alice.UUID {
		t.Fatalf("expected one request from alice, got %+v", pending)
	}

	if _, err := svc.AcceptRequest(ctx, alice.ID, bob.UUID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound for reversed accept, got %v", err)
	}
	if _, err := svc.AcceptRequest(ctx, bob.ID, alice.UUID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, id := range []int64{alice.ID, bob.ID} {
		friends, err := svc.ListFriends(ctx, id)
		if err != nil {
			t.Fatalf("list friends: %v", err)
		}
		if len(friends) != 1 {
			t.Fatalf("expected one friend for %d, got %d", id, len(friends))
		}
	}

	if _, err := svc.SendRequest(ctx, bob.ID, "alice"); !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}
}
