// Package openmeteo adapts the Open-Meteo forecast and archive APIs into
// forecast weather records.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
	defaultTimezone    = "Africa/Nairobi"

	currentFields    = "temperature_2m,relative_humidity_2m,dew_point_2m,precipitation,cloud_cover,pressure_msl,surface_pressure,wind_speed_10m,wind_direction_10m"
	currentDaily     = "temperature_2m_max,temperature_2m_min,uv_index_max"
	historicalFields = "temperature_2m_max,temperature_2m_min,temperature_2m_mean,precipitation_sum,wind_speed_10m_max,wind_direction_10m_dominant,relative_humidity_2m_mean,dew_point_2m_mean,pressure_msl_mean,cloud_cover_mean"
)

// Options configures the client. Zero values take defaults.
type Options struct {
	ForecastURL       string
	ArchiveURL        string
	Timezone          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Backoff           Backoff
	HTTPClient        *http.Client
}

// Client fetches current and historical daily weather from Open-Meteo.
// It is safe for concurrent use.
type Client struct {
	forecastURL string
	archiveURL  string
	timezone    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	backoff     Backoff
}

// NewClient builds a rate limited client guarded by a circuit breaker.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	tz := strings.TrimSpace(opts.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	return &Client{
		forecastURL: trimURL(opts.ForecastURL, defaultForecastURL),
		archiveURL:  trimURL(opts.ArchiveURL, defaultArchiveURL),
		timezone:    tz,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openmeteo",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		backoff: opts.Backoff.withDefaults(),
	}
}

func trimURL(value, fallback string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		v = fallback
	}
	return strings.TrimRight(v, "/")
}

// FetchCurrent returns the present observation for region.
func (c *Client) FetchCurrent(ctx context.Context, region forecast.Region) (forecast.WeatherRecord, error) {
	params := c.locationParams(region)
	params.Set("current", currentFields)
	params.Set("daily", currentDaily)
	params.Set("forecast_days", "1")

	var payload currentResponse
	if err := c.getJSON(ctx, c.forecastURL, params, &payload); err != nil {
		return forecast.WeatherRecord{}, fmt.Errorf("open-meteo current: %w", err)
	}
	return normalizeCurrent(payload), nil
}

// FetchHistorical returns daily records between from and to, inclusive,
// in ascending date order.
func (c *Client) FetchHistorical(ctx context.Context, region forecast.Region, from, to time.Time) ([]forecast.WeatherRecord, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("open-meteo archive: end %s before start %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	params := c.locationParams(region)
	params.Set("start_date", from.Format(time.DateOnly))
	params.Set("end_date", to.Format(time.DateOnly))
	params.Set("daily", historicalFields)

	var payload archiveResponse
	if err := c.getJSON(ctx, c.archiveURL, params, &payload); err != nil {
		return nil, fmt.Errorf("open-meteo archive: %w", err)
	}
	return normalizeDaily(payload.Daily), nil
}

func (c *Client) locationParams(region forecast.Region) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(region.Latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(region.Longitude, 'f', 4, 64))
	params.Set("timezone", c.timezone)
	return params
}

func (c *Client) getJSON(ctx context.Context, base string, params url.Values, out any) error {
	endpoint := base + "?" + params.Encode()
	resp, err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
