package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
	"github.com/yanqian/meteo-forecast/internal/infra/archive"
	"github.com/yanqian/meteo-forecast/internal/infra/config"
	"github.com/yanqian/meteo-forecast/internal/infra/forecastlog"
	"github.com/yanqian/meteo-forecast/internal/infra/forecaststore"
	"github.com/yanqian/meteo-forecast/internal/infra/meteo/openmeteo"
	"github.com/yanqian/meteo-forecast/internal/infra/scheduler"
)

func provideForecastConfig(cfg *config.Config) forecast.Config {
	return forecast.Config{
		DefaultDays:        cfg.Forecast.DefaultDays,
		MaxDays:            cfg.Forecast.MaxDays,
		HistoryYears:       cfg.Forecast.HistoryYears,
		MinTrendHistory:    cfg.Forecast.MinTrendHistory,
		RetrainThreshold:   cfg.Forecast.RetrainThreshold,
		CacheTTL:           cfg.Forecast.CacheTTL,
		EvaluationDays:     cfg.Forecast.EvaluationDays,
		BackgroundTraining: cfg.Forecast.BackgroundTraining,
		Model: forecast.ModelConfig{
			Epochs:       cfg.Model.Epochs,
			BatchSize:    cfg.Model.BatchSize,
			LearningRate: cfg.Model.LearningRate,
			Seed:         cfg.Model.Seed,
		},
	}
}

func provideRegions(cfg *config.Config) []forecast.Region {
	regions := make([]forecast.Region, 0, len(cfg.Regions))
	for _, r := range cfg.Regions {
		regions = append(regions, forecast.Region{
			Code:      strings.ToUpper(strings.TrimSpace(r.Code)),
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	return regions
}

func provideOpenMeteoClient(cfg *config.Config) *openmeteo.Client {
	return openmeteo.NewClient(openmeteo.Options{
		ForecastURL:       cfg.OpenMeteo.ForecastURL,
		ArchiveURL:        cfg.OpenMeteo.ArchiveURL,
		Timezone:          cfg.OpenMeteo.Timezone,
		Timeout:           cfg.OpenMeteo.Timeout,
		RequestsPerSecond: cfg.OpenMeteo.RequestsPerSecond,
		Burst:             cfg.OpenMeteo.Burst,
		Backoff: openmeteo.Backoff{
			MaxRetries:      cfg.OpenMeteo.MaxRetries,
			InitialInterval: cfg.OpenMeteo.InitialBackoff,
			MaxInterval:     cfg.OpenMeteo.MaxBackoff,
		},
	})
}

func provideForecastStore(cfg *config.Config, logger *slog.Logger) forecast.Store {
	if cfg.Cache.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return forecaststore.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return forecaststore.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
			client.Close()
		} else {
			logger.Info("forecast valkey cache enabled", "addr", cfg.Cache.Addr)
			return forecaststore.NewValkeyStore(client, cfg.Cache.Prefix)
		}
	}
	return forecaststore.NewMemoryStore()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	if strings.Contains(cfg.Cache.Addr, "://") {
		return valkey.ParseURL(cfg.Cache.Addr)
	}
	return valkey.ClientOption{InitAddress: []string{cfg.Cache.Addr}}, nil
}

func provideRunLog(cfg *config.Config, logger *slog.Logger) forecast.RunLog {
	fallback := forecastlog.NewMemoryRunLog(10000)
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory run log")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory run log", "error", err)
		return fallback
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory run log", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory run log", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("postgres run log enabled")
	return forecastlog.NewPostgresRunLog(pool)
}

// provideArchive returns nil when archiving is disabled or unavailable.
func provideArchive(cfg *config.Config, logger *slog.Logger) forecast.Archive {
	if !cfg.Archive.Enabled {
		return nil
	}
	a, err := archive.NewR2Archive(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.Region, logger)
	if err != nil {
		logger.Error("report archive disabled", "error", err)
		return nil
	}
	logger.Info("report archive enabled", "bucket", cfg.Archive.Bucket)
	return a
}

// provideWarmer returns nil when the scheduler is disabled.
func provideWarmer(cfg *config.Config, svc forecast.Service, logger *slog.Logger) *scheduler.Warmer {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	return scheduler.NewWarmer(svc, cfg.Scheduler.Regions, cfg.Scheduler.Interval, cfg.Scheduler.Timeout, logger)
}
