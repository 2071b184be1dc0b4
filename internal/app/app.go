package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"dialogd/internal/janitor"
	"dialogd/pkg/api/handlers"
	"dialogd/pkg/config"
	"dialogd/pkg/logger"
	"dialogd/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	addr    string
	dbPath  string
	version string

	srv           *http.Server
	janitorCancel context.CancelFunc
}

// New initializes resources that do not require a running context (DB,
// runtime keys, request limits). It does not start the HTTP server or the
// janitor; call Run to start those and block until shutdown.
func New(cfg *config.Config, addr, dbPath, version string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate config early and fail fast
	if err := validateConfig(cfg, dbPath); err != nil {
		return nil, err
	}

	// runtime keys
	config.SetRuntime(config.BuildRuntime(cfg))

	// request limits
	handlers.SetMaxMessageBytes(cfg.Limits.MaxMessageBytes.Int64())

	// open store
	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	return &App{cfg: cfg, addr: addr, dbPath: dbPath, version: version}, nil
}

// Run starts the janitor (if enabled) and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancel, err := janitor.Start(ctx, a.cfg.Janitor)
	if err != nil {
		return err
	}
	a.janitorCancel = cancel

	logger.Info("server_starting", "addr", a.addr, "db", a.dbPath, "version", a.version)

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// shutdown stops the janitor, drains the HTTP server and closes the store.
func (a *App) shutdown() {
	if a.janitorCancel != nil {
		a.janitorCancel()
	}
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Warn("store_close_error", "error", err)
	}
	logger.Info("server_stopped")
}
