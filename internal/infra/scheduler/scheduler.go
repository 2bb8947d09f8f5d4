package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// Forecaster is the slice of forecast.Service the warm-up job needs.
type Forecaster interface {
	Forecast(ctx context.Context, req forecast.Request) (forecast.Response, error)
}

// Warmer periodically requests a forecast for every configured region so
// caches stay hot and region models train before the first user request.
type Warmer struct {
	scheduler *gocron.Scheduler
	service   Forecaster
	regions   []string
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewWarmer creates a warm-up scheduler.
func NewWarmer(service Forecaster, regions []string, interval, timeout time.Duration, logger *slog.Logger) *Warmer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Warmer{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		regions:   regions,
		interval:  interval,
		timeout:   timeout,
		logger:    logger.With("component", "scheduler.warmer"),
	}
}

// Start schedules the job and runs it immediately in the background.
func (w *Warmer) Start() error {
	if len(w.regions) == 0 {
		w.logger.Info("no regions configured; warm-up disabled")
		return nil
	}
	minutes := int(w.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}
	if _, err := w.scheduler.Every(minutes).Minutes().SingletonMode().Do(w.runOnce); err != nil {
		return err
	}
	w.scheduler.StartAsync()
	w.logger.Info("warm-up scheduled", "everyMinutes", minutes, "regions", len(w.regions))
	return nil
}

// Stop cancels future runs.
func (w *Warmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}

// runOnce walks the regions sequentially; model training is CPU bound.
func (w *Warmer) runOnce() {
	started := time.Now()
	failed := 0
	for _, code := range w.regions {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		resp, err := w.service.Forecast(ctx, forecast.Request{Region: code})
		cancel()
		if err != nil {
			failed++
			w.logger.Warn("warm-up forecast failed", "region", code, "error", err)
			continue
		}
		w.logger.Debug("warm-up forecast ready", "region", code, "source", resp.Source, "cached", resp.Cached)
	}
	w.logger.Info("warm-up completed", "regions", len(w.regions), "failed", failed, "elapsed", time.Since(started).String())
}
