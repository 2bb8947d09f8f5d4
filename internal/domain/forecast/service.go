package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
	"github.com/yanqian/meteo-forecast/pkg/metrics"
	"github.com/yanqian/meteo-forecast/pkg/util"
)

// Service exposes forecasting per configured region.
type Service interface {
	Forecast(ctx context.Context, req Request) (Response, error)
	Train(ctx context.Context, req TrainRequest) (TrainResponse, error)
	Status(ctx context.Context, region string) (StatusResponse, error)
	Regions() []Region
	Runs(ctx context.Context, region string, limit int) ([]Run, error)
}

type service struct {
	cfg        Config
	regions    []Region
	current    CurrentSupplier
	historical HistoricalSupplier
	store      Store
	runs       RunLog
	archive    Archive
	analyzer   *Analyzer
	logger     *slog.Logger
	now        func() time.Time
	newSource  func() rand.Source
	background bool

	mu    sync.Mutex
	slots map[string]*Orchestrator
}

// NewService wires the forecast domain.
func NewService(cfg Config, regions []Region, current CurrentSupplier, historical HistoricalSupplier, store Store, runs RunLog, archive Archive, logger *slog.Logger) Service {
	return newService(cfg, regions, current, historical, store, runs, archive, logger)
}

func newService(cfg Config, regions []Region, current CurrentSupplier, historical HistoricalSupplier, store Store, runs RunLog, archive Archive, logger *slog.Logger) *service {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 5
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 14
	}
	if cfg.HistoryYears <= 0 {
		cfg.HistoryYears = 2
	}
	if cfg.EvaluationDays <= 0 {
		cfg.EvaluationDays = 60
	}
	return &service{
		cfg:        cfg,
		regions:    regions,
		current:    current,
		historical: historical,
		store:      store,
		runs:       runs,
		archive:    archive,
		analyzer:   NewAnalyzer(cfg.MinTrendHistory),
		logger:     logger.With("component", "forecast.service"),
		now:        util.NowUTC,
		newSource:  func() rand.Source { return rand.NewSource(time.Now().UnixNano()) },
		background: cfg.BackgroundTraining,
		slots:      make(map[string]*Orchestrator),
	}
}

func (s *service) Regions() []Region {
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

func (s *service) region(code string) (Region, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Region{}, apperrors.Wrap(CodeInvalidInput, "region is required", nil)
	}
	for _, r := range s.regions {
		if r.Code == code {
			return r, nil
		}
	}
	return Region{}, apperrors.Newf(CodeInvalidInput, "unknown region %q", code)
}

// orchestrator returns the region's slot, creating it on first use.
func (s *service) orchestrator(region Region) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.slots[region.Code]; ok {
		return o
	}
	logger := s.logger.With("region", region.Code)
	o := NewOrchestrator(
		NewRecurrentPredictor(s.cfg.Model, logger),
		NewStatisticalPredictor(s.newSource(), region.Latitude),
		s.cfg.RetrainThreshold,
		logger,
	)
	s.slots[region.Code] = o
	return o
}

func (s *service) Forecast(ctx context.Context, req Request) (Response, error) {
	region, err := s.region(req.Region)
	if err != nil {
		return Response{}, err
	}
	days := req.Days
	if days == 0 {
		days = s.cfg.DefaultDays
	}
	if days < 1 || days > s.cfg.MaxDays {
		return Response{}, apperrors.Newf(CodeInvalidInput, "days must be between 1 and %d", s.cfg.MaxDays)
	}

	now := s.now()
	key := fmt.Sprintf("%s:%d:%s", region.Code, days, now.Format(time.DateOnly))
	if cached, ok, err := s.store.Get(ctx, key); err != nil {
		s.logger.Warn("forecast cache lookup failed", "error", err, "key", key)
	} else if ok {
		cached.Cached = true
		return cached, nil
	}

	current, history, err := s.load(ctx, region, now)
	if err != nil {
		return Response{}, err
	}
	trends := s.analyzer.Analyze(history, current)

	slot := s.orchestrator(region)
	s.trainIfNeeded(slot, region, history)
	pred := slot.Predict(ctx, current, history, trends, days)

	resp := Response{
		ID:          uuid.NewString(),
		Region:      region,
		GeneratedAt: now,
		Source:      pred.Source,
		Current:     viewOf(current),
		Days:        make([]DayView, 0, len(pred.Records)),
		Trends:      trends,
		HistorySize: len(history),
	}
	for _, r := range pred.Records {
		resp.Days = append(resp.Days, viewOf(r))
	}
	s.logger.Info("forecast generated", "region", region.Code, "days", days, "source", pred.Source, "history", len(history))

	s.record(ctx, key, resp)
	return resp, nil
}

func (s *service) load(ctx context.Context, region Region, now time.Time) (WeatherRecord, []WeatherRecord, error) {
	current, err := s.current.FetchCurrent(ctx, region)
	if err != nil {
		return WeatherRecord{}, nil, apperrors.Wrap(CodeSupplierError, "failed to fetch current conditions", err)
	}
	history, err := s.loadHistory(ctx, region, now)
	if err != nil {
		return WeatherRecord{}, nil, err
	}
	return current.Sanitize(), history, nil
}

// loadHistory fetches the configured history window, clamped to physical ranges.
func (s *service) loadHistory(ctx context.Context, region Region, now time.Time) ([]WeatherRecord, error) {
	from := util.StartOfDay(now).AddDate(-s.cfg.HistoryYears, 0, 0)
	history, err := s.historical.FetchHistorical(ctx, region, from, now)
	if err != nil {
		return nil, apperrors.Wrap(CodeSupplierError, "failed to fetch historical records", err)
	}
	clean := make([]WeatherRecord, len(history))
	for i, r := range history {
		clean[i] = r.Sanitize()
	}
	return clean, nil
}

func (s *service) trainIfNeeded(slot *Orchestrator, region Region, history []WeatherRecord) {
	logger := s.logger.With("region", region.Code)
	progress := func(epoch int, loss float64) {
		logger.Debug("training epoch", "epoch", epoch, "loss", loss)
	}
	if !s.background {
		slot.TrainIfNeeded(context.Background(), history, progress)
		return
	}
	go func() {
		outcome := slot.TrainIfNeeded(context.Background(), history, progress)
		logger.Info("background training finished", "outcome", outcome)
	}()
}

// record caches, logs and archives a response. Failures are logged only.
func (s *service) record(ctx context.Context, key string, resp Response) {
	if err := s.store.Save(ctx, key, resp, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache forecast", "error", err, "key", key)
	}
	run := Run{
		ID:          resp.ID,
		Region:      resp.Region.Code,
		Source:      resp.Source,
		Days:        len(resp.Days),
		HistorySize: resp.HistorySize,
		Current:     resp.Current.Features(),
		CreatedAt:   resp.GeneratedAt,
	}
	if len(resp.Days) > 0 {
		run.FirstDay = resp.Days[0].Features()
	}
	if err := s.runs.Append(ctx, run); err != nil {
		s.logger.Warn("failed to log forecast run", "error", err, "id", run.ID)
	}
	if s.archive != nil {
		if err := s.archive.Put(ctx, resp); err != nil {
			s.logger.Warn("failed to archive forecast", "error", err, "id", resp.ID)
		}
	}
}

func (s *service) Train(ctx context.Context, req TrainRequest) (TrainResponse, error) {
	region, err := s.region(req.Region)
	if err != nil {
		return TrainResponse{}, err
	}
	history, err := s.loadHistory(ctx, region, s.now())
	if err != nil {
		return TrainResponse{}, err
	}

	var (
		lossMu sync.Mutex
		losses []float64
	)
	slot := s.orchestrator(region)
	started := time.Now()
	outcome, err := slot.Retrain(ctx, history, func(_ int, loss float64) {
		lossMu.Lock()
		losses = append(losses, loss)
		lossMu.Unlock()
	})
	if err != nil {
		return TrainResponse{}, err
	}
	elapsed := time.Since(started)

	test := history
	if len(test) > s.cfg.EvaluationDays {
		test = test[len(test)-s.cfg.EvaluationDays:]
	}
	eval := slot.Evaluate(test)

	stats := metrics.TrainingStats{
		Epochs:        len(losses),
		Samples:       len(history),
		ValidationMAE: eval.MAE,
		Duration:      elapsed,
	}
	if len(losses) > 0 {
		stats.FinalLoss = losses[len(losses)-1]
	}
	s.logger.Info("region model retrained", "region", region.Code, "epochs", stats.Epochs, "final_loss", stats.FinalLoss, "mae", eval.MAE)

	return TrainResponse{
		Region:     region.Code,
		Outcome:    outcome,
		Losses:     losses,
		Evaluation: eval,
		Stats:      stats,
		Status:     slot.Status(),
	}, nil
}

func (s *service) Status(_ context.Context, code string) (StatusResponse, error) {
	region, err := s.region(code)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{Region: region, Status: s.orchestrator(region).Status()}, nil
}

func (s *service) Runs(ctx context.Context, code string, limit int) ([]Run, error) {
	region, err := s.region(code)
	if err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	runs, err := s.runs.Recent(ctx, region.Code, limit)
	if err != nil {
		return nil, apperrors.Wrap(CodeStorageError, "failed to load forecast runs", err)
	}
	return runs, nil
}
