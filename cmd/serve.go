package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vlaship/rex/internal/api"
	"github.com/vlaship/rex/internal/app"
	"github.com/vlaship/rex/internal/config"
	"github.com/vlaship/rex/internal/log"
)

// serveAddr resolves the listen address: the optional positional argument
// wins over configuration.
func serveAddr(cfg *config.Config, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return cfg.ServeAddr
}

// runServe initializes and starts the HTTP API server.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv, err := api.NewServer(api.ServerConfig{
		Logger:   logger,
		Answerer: a.Orchestrator,
		Sessions: a.Sessions,
		Ingest:   a.Ingest,
		Pool:     a.Pool,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	addr := serveAddr(cfg, os.Args[2:])
	if err := srv.Run(ctx, addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
