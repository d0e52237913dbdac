package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-rooms/internal/app"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/log"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

type options struct {
	configPath string
	addr       string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	serve.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides config)")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMigrate(opts)
		},
	}

	root := &cobra.Command{
		Use:           "wirechat-rooms",
		Short:         "Room chat server with single-use stream admission",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, migrate)

	return root
}

// loadConfig resolves configuration and builds the logger it asks for.
func loadConfig(opts *options) (*config.Config, error) {
	bootLogger := log.New("info", "console")

	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return &cfg, nil
}

func runServe(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize application")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat-rooms server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runMigrate(opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel, cfg.LogFormat)

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.DatabasePath).Msg("migration failed")
		return err
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema applied")
	return st.Close()
}
