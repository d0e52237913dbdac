package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/service/friends"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-rooms/internal/transport/http"
)

// rateLimitSweepInterval is how often idle rate limit buckets are dropped.
const rateLimitSweepInterval = time.Minute

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	sweepInterval   time.Duration
	store           store.Store
	admissions      *core.Admissions
	limiter         *transporthttp.RateLimiter
	streams         *transporthttp.Streams
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	var admissionStore store.AdmissionStore = st
	if strings.EqualFold(cfg.AdmissionStore, config.AdmissionStoreMemory) {
		admissionStore = core.NewMemoryAdmissionStore()
	}
	logger.Info().Str("admission_store", cfg.AdmissionStore).Msg("admission store selected")

	registry := core.NewRegistry(cfg.SubscriberBuffer, logger)
	admissions := core.NewAdmissions(admissionStore, st, logger)
	limiter := transporthttp.NewRateLimiter(cfg.RateLimitBurst, cfg.RateLimitInterval)
	streams := transporthttp.NewStreams()

	server := transporthttp.NewServer(transporthttp.Services{
		Auth:       authService,
		Store:      st,
		Admissions: admissions,
		Gate:       core.NewGate(core.StoreRoomResolver(st), admissions, registry, logger),
		Ingestor:   core.NewIngestor(st, st, registry, logger),
		Friends:    friends.New(st),
		Limiter:    limiter,
		Streams:    streams,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		sweepInterval:   cfg.AdmissionSweepInterval,
		store:           st,
		admissions:      admissions,
		limiter:         limiter,
		streams:         streams,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	go a.sweepAdmissions(bgCtx)
	go a.limiter.Run(bgCtx, rateLimitSweepInterval, a.log)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopBackground()
		a.closeStreams(context.Background())
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.closeStreams(shutdownCtx)
			a.cleanup()
			return err
		}
		a.closeStreams(shutdownCtx)

		a.cleanup()
		return <-serverErr
	}
}

// sweepAdmissions purges expired admission tokens until ctx is done.
func (a *App) sweepAdmissions(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := a.admissions.PurgeExpired(ctx)
			if err != nil {
				a.log.Warn().Err(err).Msg("failed to purge expired admission tokens")
				continue
			}
			if n > 0 {
				a.log.Debug().Int64("purged", n).Msg("expired admission tokens purged")
			}
		case <-ctx.Done():
			return
		}
	}
}

// closeStreams ends open room streams. They outlive Shutdown because their
// connections are hijacked.
func (a *App) closeStreams(ctx context.Context) {
	active := a.streams.Active()
	if err := a.streams.Close(ctx); err != nil {
		a.log.Warn().Err(err).Int("active", a.streams.Active()).Msg("streams did not close in time")
		return
	}
	if active > 0 {
		a.log.Info().Int("closed", active).Msg("room streams closed")
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
