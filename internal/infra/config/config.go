package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Forecast  ForecastConfig  `yaml:"forecast"`
	Model     ModelConfig     `yaml:"model"`
	OpenMeteo OpenMeteoConfig `yaml:"openMeteo"`
	Cache     CacheConfig     `yaml:"cache"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Regions   []RegionConfig  `yaml:"regions"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// ForecastConfig shapes the forecast service.
type ForecastConfig struct {
	DefaultDays        int           `yaml:"defaultDays"`
	MaxDays            int           `yaml:"maxDays"`
	HistoryYears       int           `yaml:"historyYears"`
	MinTrendHistory    int           `yaml:"minTrendHistory"`
	RetrainThreshold   int           `yaml:"retrainThreshold"`
	EvaluationDays     int           `yaml:"evaluationDays"`
	CacheTTL           time.Duration `yaml:"cacheTtl"`
	BackgroundTraining bool          `yaml:"backgroundTraining"`
}

// ModelConfig controls recurrent training.
type ModelConfig struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batchSize"`
	LearningRate float64 `yaml:"learningRate"`
	Seed         int64   `yaml:"seed"`
}

// OpenMeteoConfig points the supplier at the Open-Meteo APIs.
type OpenMeteoConfig struct {
	ForecastURL       string        `yaml:"forecastUrl"`
	ArchiveURL        string        `yaml:"archiveUrl"`
	Timezone          string        `yaml:"timezone"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"maxRetries"`
	InitialBackoff    time.Duration `yaml:"initialBackoff"`
	MaxBackoff        time.Duration `yaml:"maxBackoff"`
}

// CacheConfig contains connection information for forecast caching.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings for the run log.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ArchiveConfig enables report archiving to S3-compatible storage.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// SchedulerConfig drives the periodic forecast warm-up.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Regions  []string      `yaml:"regions"`
}

// RegionConfig is a forecastable location.
type RegionConfig struct {
	Code      string  `yaml:"code"`
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Load reads configuration from .env, a YAML file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("could not load .env file", "error", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("PORT"); v != "" && os.Getenv("HTTP_ADDRESS") == "" {
		cfg.HTTP.Address = ":" + v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("FORECAST_DEFAULT_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Forecast.DefaultDays = parsed
		}
	}
	if v := os.Getenv("FORECAST_HISTORY_YEARS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Forecast.HistoryYears = parsed
		}
	}
	if v := os.Getenv("FORECAST_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Forecast.CacheTTL = parsed
		}
	}
	if v := os.Getenv("FORECAST_BACKGROUND_TRAINING"); v != "" {
		cfg.Forecast.BackgroundTraining = parseBool(v)
	}
	if v := os.Getenv("MODEL_EPOCHS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Model.Epochs = parsed
		}
	}
	if v := os.Getenv("MODEL_LEARNING_RATE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.LearningRate = parsed
		}
	}
	if v := os.Getenv("MODEL_SEED"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Model.Seed = parsed
		}
	}
	if v := os.Getenv("OPEN_METEO_FORECAST_URL"); v != "" {
		cfg.OpenMeteo.ForecastURL = v
	}
	if v := os.Getenv("OPEN_METEO_ARCHIVE_URL"); v != "" {
		cfg.OpenMeteo.ArchiveURL = v
	}
	if v := os.Getenv("OPEN_METEO_TIMEZONE"); v != "" {
		cfg.OpenMeteo.Timezone = v
	}
	if v := os.Getenv("OPEN_METEO_RPS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.OpenMeteo.RequestsPerSecond = parsed
		}
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = parseBool(v)
	}
	if v := os.Getenv("ARCHIVE_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("ARCHIVE_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = parseBool(v)
	}
	if v := os.Getenv("SCHEDULER_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.Interval = parsed
		}
	}
	if v := os.Getenv("SCHEDULER_REGIONS"); v != "" {
		cfg.Scheduler.Regions = splitList(v)
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 2 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
		},
		Forecast: ForecastConfig{
			DefaultDays:        5,
			MaxDays:            14,
			HistoryYears:       2,
			MinTrendHistory:    30,
			RetrainThreshold:   30,
			EvaluationDays:     60,
			CacheTTL:           30 * time.Minute,
			BackgroundTraining: true,
		},
		Model: ModelConfig{
			Epochs:       50,
			BatchSize:    8,
			LearningRate: 0.001,
			Seed:         1,
		},
		OpenMeteo: OpenMeteoConfig{
			ForecastURL:       "https://api.open-meteo.com/v1/forecast",
			ArchiveURL:        "https://archive-api.open-meteo.com/v1/archive",
			Timezone:          "Africa/Nairobi",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			MaxRetries:        3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        8 * time.Second,
		},
		Cache: CacheConfig{
			Prefix: "forecast",
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
		Archive: ArchiveConfig{
			Bucket: "forecast-reports",
			Region: "auto",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: time.Hour,
			Timeout:  2 * time.Minute,
		},
		Regions: defaultRegions(),
	}
}

func defaultRegions() []RegionConfig {
	return []RegionConfig{
		{Code: "TNR", Name: "Antananarivo", Latitude: -18.8792, Longitude: 47.5079},
		{Code: "FIA", Name: "Fianarantsoa", Latitude: -21.4532, Longitude: 47.0857},
		{Code: "TMM", Name: "Toamasina", Latitude: -18.1239, Longitude: 49.4035},
		{Code: "MJN", Name: "Mahajanga", Latitude: -15.7167, Longitude: 46.3167},
		{Code: "TLE", Name: "Toliara", Latitude: -23.3540, Longitude: 43.6673},
		{Code: "DIE", Name: "Antsiranana", Latitude: -12.2787, Longitude: 49.2917},
		{Code: "MOQ", Name: "Morondava", Latitude: -20.2833, Longitude: 44.2833},
		{Code: "FTU", Name: "Fort Dauphin", Latitude: -25.0319, Longitude: 46.9919},
		{Code: "SVB", Name: "Sambava", Latitude: -14.2667, Longitude: 50.1667},
		{Code: "WMR", Name: "Manakara", Latitude: -22.1333, Longitude: 48.0167},
		{Code: "WAI", Name: "Antsohihy", Latitude: -14.8833, Longitude: 47.9833},
		{Code: "WTA", Name: "Maintirano", Latitude: -18.0500, Longitude: 44.0333},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.Forecast.DefaultDays <= 0 || c.Forecast.MaxDays <= 0 {
		return errors.New("forecast.defaultDays and forecast.maxDays must be positive")
	}
	if c.Forecast.DefaultDays > c.Forecast.MaxDays {
		return errors.New("forecast.defaultDays cannot exceed forecast.maxDays")
	}
	if c.Forecast.HistoryYears <= 0 {
		return errors.New("forecast.historyYears must be positive")
	}
	if c.Forecast.CacheTTL < 0 {
		return errors.New("forecast.cacheTtl cannot be negative")
	}
	if c.Model.Epochs <= 0 {
		return errors.New("model.epochs must be positive")
	}
	if c.Model.BatchSize <= 0 {
		return errors.New("model.batchSize must be positive")
	}
	if c.Model.LearningRate <= 0 {
		return errors.New("model.learningRate must be positive")
	}
	if strings.TrimSpace(c.OpenMeteo.ForecastURL) == "" || strings.TrimSpace(c.OpenMeteo.ArchiveURL) == "" {
		return errors.New("openMeteo.forecastUrl and openMeteo.archiveUrl cannot be empty")
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Addr) == "" {
		return errors.New("cache.addr cannot be empty when the valkey cache is enabled")
	}
	if c.Archive.Enabled {
		if strings.TrimSpace(c.Archive.Endpoint) == "" {
			return errors.New("archive.endpoint cannot be empty when archiving is enabled")
		}
		if strings.TrimSpace(c.Archive.Bucket) == "" {
			return errors.New("archive.bucket cannot be empty when archiving is enabled")
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return errors.New("scheduler.interval must be at least one minute")
	}
	if len(c.Regions) == 0 {
		return errors.New("at least one region must be configured")
	}
	seen := make(map[string]struct{}, len(c.Regions))
	for _, r := range c.Regions {
		code := strings.ToUpper(strings.TrimSpace(r.Code))
		if code == "" {
			return errors.New("region code cannot be empty")
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("duplicate region code %q", code)
		}
		seen[code] = struct{}{}
		if r.Latitude < -90 || r.Latitude > 90 || r.Longitude < -180 || r.Longitude > 180 {
			return fmt.Errorf("region %s has out of range coordinates", code)
		}
	}
	for _, code := range c.Scheduler.Regions {
		if _, ok := seen[strings.ToUpper(code)]; !ok {
			return fmt.Errorf("scheduler region %q is not configured", code)
		}
	}
	return nil
}
