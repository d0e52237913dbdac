package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-rooms/internal/config"
)

func TestRateLimiter_BurstAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(3, 250*time.Millisecond)
	rl.now = func() time.Time { return now }

	for i := range 3 {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d within burst was rejected", i)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("expected request over burst to be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("expected other key to have its own bucket")
	}

	now = now.Add(250 * time.Millisecond)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("expected one token after one interval")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("expected only one token after one interval")
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(2 * time.Second)
	rl.Allow("b")

	if removed := rl.Sweep(); removed != 1 {
		t.Fatalf("expected 1 idle bucket removed, got %d", removed)
	}
	if rl.Len() != 1 {
		t.Fatalf("expected 1 bucket left, got %d", rl.Len())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, svc *Services) {
		svc.Limiter = NewRateLimiter(2, time.Hour)
	})

	for i := range 2 {
		if resp := env.do(t, http.MethodGet, "/health", "", nil); resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.Code)
		}
	}
	if resp := env.do(t, http.MethodGet, "/health", "", nil); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
}

func TestRateLimitMiddleware_CoversStream(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, svc *Services) {
		svc.Limiter = NewRateLimiter(1, time.Hour)
	})

	target := "/ws/rooms/" + uuid.NewString() + "?token=x"
	if resp := env.do(t, http.MethodGet, target, "", nil); resp.Code == http.StatusTooManyRequests {
		t.Fatal("first stream request should not be limited")
	}
	if resp := env.do(t, http.MethodGet, target, "", nil); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
}
