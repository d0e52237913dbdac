package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.SubscriberBuffer != def.SubscriberBuffer || cfg.AdmissionStore != def.AdmissionStore {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.RateLimitInterval != 250*time.Millisecond || cfg.RateLimitBurst != 15 {
		t.Fatalf("unexpected rate limit defaults: %v/%d", cfg.RateLimitInterval, cfg.RateLimitBurst)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":9000\"\nsubscriber_buffer: 10\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("WIRECHAT_SUBSCRIBER_BUFFER", "42")
	t.Setenv("WIRECHAT_ADMISSION_STORE", "memory")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("expected addr from file, got %q", cfg.Addr)
	}
	if cfg.SubscriberBuffer != 42 {
		t.Fatalf("expected env to override subscriber_buffer, got %d", cfg.SubscriberBuffer)
	}
	if cfg.AdmissionStore != AdmissionStoreMemory {
		t.Fatalf("expected memory admission store, got %q", cfg.AdmissionStore)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.AdmissionStore = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown admission store to fail validation")
	}

	cfg = Default()
	cfg.SubscriberBuffer = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected zero subscriber buffer to fail validation")
	}
}
