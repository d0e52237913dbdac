package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/service/friends"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

type testEnv struct {
	store    store.Store
	auth     *auth.Service
	registry *core.Registry
	streams  *Streams
	server   *httptest.Server
	handler  http.Handler
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *Services)) *testEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)

	st := createTestStore(t)
	authService := createTestAuthService(t, st, "test-secret")

	logger := zerolog.Nop()
	registry := core.NewRegistry(core.DefaultSubscriberBuffer, &logger)
	admissions := core.NewAdmissions(st, st, &logger)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.AllowRegistration = true

	svc := Services{
		Auth:       authService,
		Store:      st,
		Admissions: admissions,
		Gate:       core.NewGate(core.StoreRoomResolver(st), admissions, registry, &logger),
		Ingestor:   core.NewIngestor(st, st, registry, &logger),
		Friends:    friends.New(st),
		Streams:    NewStreams(),
	}
	if mutate != nil {
		mutate(&cfg, &svc)
	}

	server := NewServer(svc, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		store:    st,
		auth:     authService,
		registry: registry,
		streams:  svc.Streams,
		server:   ts,
		handler:  server.Handler,
	}
}

// register creates a user and returns its session token.
func (e *testEnv) register(t *testing.T, username string) *auth.Session {
	t.Helper()

	sess, err := e.auth.Register(context.Background(), username+"@example.com", username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return sess
}

// do sends a request through the router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", resp.Body.String(), err)
	}
	return v
}
