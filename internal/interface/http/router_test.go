package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
	"github.com/yanqian/meteo-forecast/internal/infra/config"
	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
)

func TestRouter_ForecastSuccess(t *testing.T) {
	svc := &stubService{
		forecastFn: func(ctx context.Context, req forecast.Request) (forecast.Response, error) {
			require.Equal(t, "TNR", req.Region)
			require.Equal(t, 3, req.Days)
			return forecast.Response{ID: "run-1", Region: forecast.Region{Code: "TNR"}, Source: forecast.SourceStatistical}, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/forecasts", `{"region":"TNR","days":3}`, newRouterUnderTest(t, svc, config.RateLimitConfig{}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got forecast.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, "run-1", got.ID)
	require.Equal(t, forecast.SourceStatistical, got.Source)
}

func TestRouter_ForecastBindingErrors(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{"region":12}`,
		"missing region": `{"days":3}`,
		"too many days":  `{"region":"TNR","days":20}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubService{
				forecastFn: func(context.Context, forecast.Request) (forecast.Response, error) {
					t.Fatal("service must not be called")
					return forecast.Response{}, nil
				},
			}
			recorder := performRequest(http.MethodPost, "/api/v1/forecasts", body, newRouterUnderTest(t, svc, config.RateLimitConfig{}))
			require.Equal(t, http.StatusBadRequest, recorder.Code)
			errBody := decodeErrorBody(t, recorder.Body.Bytes())
			require.Equal(t, forecast.CodeInvalidInput, errBody["error"]["code"])
			require.NotEmpty(t, errBody["error"]["message"])
		})
	}
}

func TestRouter_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.Wrap(forecast.CodeInvalidInput, "unknown region", nil), http.StatusBadRequest, forecast.CodeInvalidInput},
		{apperrors.Wrap(forecast.CodeSupplierError, "upstream down", errors.New("timeout")), http.StatusBadGateway, forecast.CodeSupplierError},
		{apperrors.Wrap(forecast.CodeTrainingInProgress, "busy", nil), http.StatusConflict, forecast.CodeTrainingInProgress},
		{apperrors.Wrap(forecast.CodeInsufficientData, "too little history", nil), http.StatusUnprocessableEntity, forecast.CodeInsufficientData},
		{apperrors.Wrap(forecast.CodeTrainingFailure, "diverged", nil), http.StatusInternalServerError, forecast.CodeTrainingFailure},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &stubService{
				trainFn: func(context.Context, forecast.TrainRequest) (forecast.TrainResponse, error) {
					return forecast.TrainResponse{}, tc.err
				},
			}
			recorder := performRequest(http.MethodPost, "/api/v1/regions/TNR/train", "", newRouterUnderTest(t, svc, config.RateLimitConfig{}))
			require.Equal(t, tc.status, recorder.Code)
			errBody := decodeErrorBody(t, recorder.Body.Bytes())
			require.Equal(t, tc.code, errBody["error"]["code"])
		})
	}
}

func TestRouter_TrainPassesRegionCode(t *testing.T) {
	svc := &stubService{
		trainFn: func(_ context.Context, req forecast.TrainRequest) (forecast.TrainResponse, error) {
			require.Equal(t, "MJN", req.Region)
			return forecast.TrainResponse{Region: "MJN", Outcome: forecast.TrainCompleted, Losses: []float64{0.3, 0.2}}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/regions/MJN/train", "", newRouterUnderTest(t, svc, config.RateLimitConfig{}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got forecast.TrainResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, forecast.TrainCompleted, got.Outcome)
	require.Len(t, got.Losses, 2)
}

func TestRouter_RegionsAndStatus(t *testing.T) {
	svc := &stubService{
		regions: []forecast.Region{{Code: "TNR", Name: "Antananarivo"}, {Code: "MJN", Name: "Mahajanga"}},
		statusFn: func(_ context.Context, code string) (forecast.StatusResponse, error) {
			return forecast.StatusResponse{Region: forecast.Region{Code: code}, Status: forecast.Status{IsReady: true, TrainedOn: 730}}, nil
		},
	}
	server := newRouterUnderTest(t, svc, config.RateLimitConfig{})

	recorder := performRequest(http.MethodGet, "/api/v1/regions", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var regions struct {
		Regions []forecast.Region `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &regions))
	require.Len(t, regions.Regions, 2)

	recorder = performRequest(http.MethodGet, "/api/v1/regions/TNR/status", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var status forecast.StatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	require.True(t, status.Status.IsReady)
	require.Equal(t, 730, status.Status.TrainedOn)
}

func TestRouter_RunsLimit(t *testing.T) {
	svc := &stubService{
		runsFn: func(_ context.Context, code string, limit int) ([]forecast.Run, error) {
			require.Equal(t, "TNR", code)
			require.Equal(t, 2, limit)
			return []forecast.Run{{ID: "a", Region: code}, {ID: "b", Region: code}}, nil
		},
	}
	server := newRouterUnderTest(t, svc, config.RateLimitConfig{})

	recorder := performRequest(http.MethodGet, "/api/v1/regions/TNR/runs?limit=2", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var body struct {
		Runs []forecast.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)

	recorder = performRequest(http.MethodGet, "/api/v1/regions/TNR/runs?limit=abc", "", server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	svc := &stubService{regions: []forecast.Region{{Code: "TNR"}}}
	server := newRouterUnderTest(t, svc, config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1})

	first := performRequest(http.MethodGet, "/api/v1/regions", "", server)
	require.Equal(t, http.StatusOK, first.Code)

	second := performRequest(http.MethodGet, "/api/v1/regions", "", server)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.NotEmpty(t, second.Header().Get("Retry-After"))
	errBody := decodeErrorBody(t, second.Body.Bytes())
	require.Equal(t, "rate_limit_exceeded", errBody["error"]["code"])
}

func TestIPRateLimiterRefills(t *testing.T) {
	limiter := newIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2}, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ok, _ := limiter.allow("10.0.0.1", now)
	require.True(t, ok)
	ok, _ = limiter.allow("10.0.0.1", now)
	require.True(t, ok)
	ok, wait := limiter.allow("10.0.0.1", now)
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))

	ok, _ = limiter.allow("10.0.0.2", now)
	require.True(t, ok)

	ok, _ = limiter.allow("10.0.0.1", now.Add(1100*time.Millisecond))
	require.True(t, ok)
}

func TestIPRateLimiterForgetsIdleClients(t *testing.T) {
	limiter := newIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.allow("10.0.0.1", now)
	limiter.allow("10.0.0.2", now.Add(2*time.Minute))
	require.Len(t, limiter.visitors, 1)
}

func TestCORSPreflight(t *testing.T) {
	svc := &stubService{}
	recorder := performRequest(http.MethodOptions, "/api/v1/forecasts", "", newRouterUnderTest(t, svc, config.RateLimitConfig{}))
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, svc forecast.Service, limit config.RateLimitConfig) *http.Server {
	t.Helper()
	handler := NewHandler(svc, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			RateLimit:    limit,
		},
	}
	return NewRouter(cfg, handler)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubService struct {
	forecastFn func(ctx context.Context, req forecast.Request) (forecast.Response, error)
	trainFn    func(ctx context.Context, req forecast.TrainRequest) (forecast.TrainResponse, error)
	statusFn   func(ctx context.Context, code string) (forecast.StatusResponse, error)
	runsFn     func(ctx context.Context, code string, limit int) ([]forecast.Run, error)
	regions    []forecast.Region
}

func (s *stubService) Forecast(ctx context.Context, req forecast.Request) (forecast.Response, error) {
	if s.forecastFn != nil {
		return s.forecastFn(ctx, req)
	}
	return forecast.Response{}, nil
}

func (s *stubService) Train(ctx context.Context, req forecast.TrainRequest) (forecast.TrainResponse, error) {
	if s.trainFn != nil {
		return s.trainFn(ctx, req)
	}
	return forecast.TrainResponse{}, nil
}

func (s *stubService) Status(ctx context.Context, code string) (forecast.StatusResponse, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, code)
	}
	return forecast.StatusResponse{}, nil
}

func (s *stubService) Regions() []forecast.Region {
	return s.regions
}

func (s *stubService) Runs(ctx context.Context, code string, limit int) ([]forecast.Run, error) {
	if s.runsFn != nil {
		return s.runsFn(ctx, code, limit)
	}
	return nil, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
