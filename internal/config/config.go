package config

import (
	"fmt"
	"strings"
	"time"
)

// Admission store backends.
const (
	AdmissionStoreSQLite = "sqlite"
	AdmissionStoreMemory = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	AllowRegistration bool `mapstructure:"allow_registration" yaml:"allow_registration"`

	SubscriberBuffer       int           `mapstructure:"subscriber_buffer" yaml:"subscriber_buffer"`
	AdmissionStore         string        `mapstructure:"admission_store" yaml:"admission_store"`
	AdmissionSweepInterval time.Duration `mapstructure:"admission_sweep_interval" yaml:"admission_sweep_interval"`

	RateLimitBurst    int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	RateLimitInterval time.Duration `mapstructure:"rate_limit_interval" yaml:"rate_limit_interval"`

	WSOriginPatterns []string `mapstructure:"ws_origin_patterns" yaml:"ws_origin_patterns"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                   ":8080",
		ReadHeaderTimeout:      5 * time.Second,
		ShutdownTimeout:        5 * time.Second,
		DatabasePath:           "wirechat.db",
		LogLevel:               "info",
		LogFormat:              "console",
		JWTSecret:              "change-me-in-production",
		JWTIssuer:              "wirechat",
		JWTAudience:            "wirechat-clients",
		JWTTTL:                 24 * time.Hour,
		AllowRegistration:      false,
		SubscriberBuffer:       100,
		AdmissionStore:         AdmissionStoreSQLite,
		AdmissionSweepInterval: time.Minute,
		RateLimitBurst:         15,
		RateLimitInterval:      250 * time.Millisecond,
	}
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must not be empty")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("jwt_ttl must be positive")
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive")
	}
	switch strings.ToLower(c.AdmissionStore) {
	case AdmissionStoreSQLite, AdmissionStoreMemory:
	default:
		return fmt.Errorf("admission_store must be %q or %q, got %q", AdmissionStoreSQLite, AdmissionStoreMemory, c.AdmissionStore)
	}
	if c.AdmissionSweepInterval <= 0 {
		return fmt.Errorf("admission_sweep_interval must be positive")
	}
	if c.RateLimitBurst <= 0 || c.RateLimitInterval <= 0 {
		return fmt.Errorf("rate limit burst and interval must be positive")
	}
	return nil
}
