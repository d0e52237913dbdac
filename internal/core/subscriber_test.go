package core

import (
	"fmt"
	"testing"
)

func TestSubscriberEvictsOldestWhenFull(t *testing.T) {
	sub := newSubscriber(1, 3)

	for i := range 5 {
		dropped := sub.enqueue(textMessage(fmt.Sprintf("m%d", i)))
		if want := i >= 3; dropped != want {
			t.Fatalf("enqueue m%d: dropped=%v, want %v", i, dropped, want)
		}
	}

	if got := sub.Pending(); got != 3 {
		t.Fatalf("expected 3 pending, got %d", got)
	}
	if got := sub.Lagged(); got != 2 {
		t.Fatalf("expected lagged 2, got %d", got)
	}
	for _, want := range []string{"m2", "m3", "m4"} {
		if got := mustNext(t, sub).Content; got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestSubscriberKeepsOrderAcrossInterleavedReads(t *testing.T) {
	sub := newSubscriber(1, 2)

	sub.enqueue(textMessage("a"))
	sub.enqueue(textMessage("b"))
	if got := mustNext(t, sub).Content; got != "a" {
		t.Fatalf("expected a, got %s", got)
	}
	sub.enqueue(textMessage("c"))
	sub.enqueue(textMessage("d"))

	if got := sub.Lagged(); got != 1 {
		t.Fatalf("expected lagged 1, got %d", got)
	}
	for _, want := range []string{"c", "d"} {
		if got := mustNext(t, sub).Content; got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	mustNotReceive(t, sub)
}

func TestSubscriberCloseDiscardsPending(t *testing.T) {
	sub := newSubscriber(1, 0)
	if sub.Capacity() != DefaultSubscriberBuffer {
		t.Fatalf("expected default capacity %d, got %d", DefaultSubscriberBuffer, sub.Capacity())
	}

	sub.enqueue(textMessage("x"))
	if !sub.close() {
		t.Fatal("first close should report true")
	}
	if sub.close() {
		t.Fatal("second close should report false")
	}
	if sub.Pending() != 0 {
		t.Fatalf("expected empty queue after close, got %d", sub.Pending())
	}
	if sub.enqueue(textMessage("y")) {
		t.Fatal("enqueue after close must not report a drop")
	}
}
