package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/config"
)

func TestRun_ShutsDownOnCancel(t *testing.T) {
	for _, backend := range []string{config.AdmissionStoreSQLite, config.AdmissionStoreMemory} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Addr = "127.0.0.1:0"
			cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")
			cfg.AdmissionStore = backend
			cfg.AdmissionSweepInterval = 10 * time.Millisecond

			logger := zerolog.Nop()
			application, err := New(&cfg, &logger)
			if err != nil {
				t.Fatalf("new app: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- application.Run(ctx) }()

			time.Sleep(50 * time.Millisecond)
			cancel()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("run returned error: %v", err)
				}
				if !application.streams.ShuttingDown() {
					t.Fatal("expected room streams to be closed on shutdown")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("app did not shut down")
			}
		})
	}
}
