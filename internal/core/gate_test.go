package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type gateFixture struct {
	gate       *Gate
	admissions *Admissions
	registry   *Registry
	members    *fakeMembers
	messages   *fakeMessages
	ingestor   *Ingestor
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	logger := nopLogger()
	members := newFakeMembers()
	messages := &fakeMessages{names: map[int64]string{1: "alice", 2: "bob"}}
	registry := NewRegistry(16, logger)
	admissions := NewAdmissions(NewMemoryAdmissionStore(), members, logger)

	return &gateFixture{
		gate:       NewGate(staticRooms(map[string]int64{"r42": 42}), admissions, registry, logger),
		admissions: admissions,
		registry:   registry,
		members:    members,
		messages:   messages,
		ingestor:   NewIngestor(members, messages, registry, logger),
	}
}

func TestGateAdmitsOnceAndSubscribes(t *testing.T) {
	f := newGateFixture(t)
	f.members.add(1, 42)
	ctx := context.Background()

	tok, err := f.admissions.Issue(ctx, 1, 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	adm, err := f.gate.Admit(ctx, "r42", tok.Token)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if adm.State != AdmissionAdmitted || adm.UserID != 1 || adm.RoomID != 42 {
		t.Fatalf("unexpected admission %+v", adm)
	}
	if adm.Hub != f.registry.Hub(42) || adm.Hub.Subscribers() != 1 {
		t.Fatalf("admission not subscribed to the room hub")
	}

	again, err := f.gate.Admit(ctx, "r42", tok.Token)
	if !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("expected reused token to be rejected, got %v", err)
	}
	if again.State != AdmissionRejected || again.Subscriber != nil || again.Hub != nil {
		t.Fatalf("rejected attempt should hold no subscription, got %+v", again)
	}
	again.Release()
	if adm.Hub.Subscribers() != 1 {
		t.Fatalf("rejected attempt changed subscriber count")
	}

	adm.Release()
	if adm.Hub.Subscribers() != 0 {
		t.Fatalf("release did not unsubscribe")
	}
}

func TestGateRejectsUnknownRoomBeforeConsuming(t *testing.T) {
	f := newGateFixture(t)
	f.members.add(1, 42)
	ctx := context.Background()

	tok, err := f.admissions.Issue(ctx, 1, 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rejected, err := f.gate.Admit(ctx, "nope", tok.Token)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if rejected.State != AdmissionRejected || rejected.State.String() != "rejected" {
		t.Fatalf("expected rejected state, got %v", rejected.State)
	}
	if f.registry.Len() != 0 {
		t.Fatalf("rejected attempt created a hub")
	}

	// Token is still good for the real room.
	adm, err := f.gate.Admit(ctx, "r42", tok.Token)
	if err != nil {
		t.Fatalf("admit after unknown room: %v", err)
	}
	if adm.State != AdmissionAdmitted {
		t.Fatalf("expected admitted state, got %v", adm.State)
	}
	adm.Release()
}

func TestIngestPublishesPersistedMessage(t *testing.T) {
	f := newGateFixture(t)
	f.members.add(1, 42)
	ctx := context.Background()

	sub := f.registry.Hub(42).Subscribe()

	msg, err := f.ingestor.Ingest(ctx, 42, 1, "text", "hello")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if msg.Sender != "alice" || msg.Kind != "text" || msg.Content != "hello" || msg.SentAt.IsZero() {
		t.Fatalf("unexpected ingested message %+v", msg)
	}

	got := mustNext(t, sub)
	if got != msg {
		t.Fatalf("subscriber saw %+v, caller got %+v", got, msg)
	}
	if len(f.messages.saved) != 1 || f.messages.saved[0].ID != msg.ID.String() {
		t.Fatalf("message not persisted with the published id")
	}
}

func TestIngestRejectsNonMember(t *testing.T) {
	f := newGateFixture(t)
	sub := f.registry.Hub(42).Subscribe()

	if _, err := f.ingestor.Ingest(context.Background(), 42, 2, "text", "hi"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if len(f.messages.saved) != 0 {
		t.Fatalf("non-member message persisted")
	}
	mustNotReceive(t, sub)
}

func TestIngestDoesNotPublishOnPersistenceFailure(t *testing.T) {
	f := newGateFixture(t)
	f.members.add(1, 42)
	f.messages.err = errors.New("disk full")
	sub := f.registry.Hub(42).Subscribe()

	_, err := f.ingestor.Ingest(context.Background(), 42, 1, "text", "hi")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	mustNotReceive(t, sub)
}

type recordingSink struct {
	mu      sync.Mutex
	got     []Message
	failAt  int
	arrived chan struct{}
}

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.got)+1 == s.failAt {
		return errors.New("peer gone")
	}
	s.got = append(s.got, msg)
	if s.arrived != nil {
		s.arrived <- struct{}{}
	}
	return nil
}

func TestDeliverForwardsUntilSendFails(t *testing.T) {
	f := newGateFixture(t)
	hub := f.registry.Hub(42)
	sub := hub.Subscribe()
	other := hub.Subscribe()

	sink := &recordingSink{failAt: 3}
	hub.Publish(textMessage("one"))
	hub.Publish(textMessage("two"))
	hub.Publish(textMessage("three"))

	err := Deliver(context.Background(), hub, sub, sink, nopLogger())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if len(sink.got) != 2 || sink.got[0].Content != "one" || sink.got[1].Content != "two" {
		t.Fatalf("unexpected delivered messages %+v", sink.got)
	}
	if !sub.Closed() || hub.Subscribers() != 1 {
		t.Fatalf("failed delivery loop did not unsubscribe only itself")
	}

	// The other subscriber is unaffected.
	for _, want := range []string{"one", "two", "three"} {
		if msg := mustNext(t, other); msg.Content != want {
			t.Fatalf("other subscriber: expected %q, got %q", want, msg.Content)
		}
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	f := newGateFixture(t)
	hub := f.registry.Hub(42)
	sub := hub.Subscribe()

	sink := &recordingSink{arrived: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- Deliver(ctx, hub, sub, sink, nopLogger())
	}()

	hub.Publish(textMessage("live"))
	select {
	case <-sink.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver did not exit on cancel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("cancelled delivery loop left its subscriber attached")
	}
}
