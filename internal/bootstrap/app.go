package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/meteo-forecast/internal/infra/config"
	"github.com/yanqian/meteo-forecast/internal/infra/scheduler"
)

// App encapsulates the HTTP server and warm-up scheduler lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	warmer *scheduler.Warmer
}

// NewApp is used by Wire to build the runnable app. warmer may be nil.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, warmer *scheduler.Warmer) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, warmer: warmer}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address, "regions", len(a.cfg.Regions))
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	if a.warmer != nil {
		if err := a.warmer.Start(); err != nil {
			a.logger.Error("warm-up scheduler failed to start", "error", err)
		}
		defer a.warmer.Stop()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
