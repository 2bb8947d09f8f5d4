package forecast

import (
	"context"
	"time"
)

// ModelTrainer fits a sequence model on a history.
type ModelTrainer interface {
	Train(ctx context.Context, history []WeatherRecord, onEpoch EpochFunc) (SequenceModel, error)
}

// SequenceModel is a trained, immutable day-ahead forecaster.
type SequenceModel interface {
	Ready() bool
	PredictSequence(recent []WeatherRecord, days int, anchor time.Time) ([]WeatherRecord, error)
	Evaluate(test []WeatherRecord) Evaluation
}

// FallbackPredictor always produces a forecast.
type FallbackPredictor interface {
	Predict(current WeatherRecord, trends Trends, days int) []WeatherRecord
}

// CurrentSupplier returns the present observation for a region.
type CurrentSupplier interface {
	FetchCurrent(ctx context.Context, region Region) (WeatherRecord, error)
}

// HistoricalSupplier returns daily records in ascending date order.
type HistoricalSupplier interface {
	FetchHistorical(ctx context.Context, region Region, from, to time.Time) ([]WeatherRecord, error)
}

// Store caches forecast responses.
type Store interface {
	Get(ctx context.Context, key string) (Response, bool, error)
	Save(ctx context.Context, key string, resp Response, ttl time.Duration) error
}

// RunLog records produced forecasts.
type RunLog interface {
	Append(ctx context.Context, run Run) error
	Recent(ctx context.Context, region string, limit int) ([]Run, error)
}

// Archive keeps full forecast reports.
type Archive interface {
	Put(ctx context.Context, resp Response) error
}
