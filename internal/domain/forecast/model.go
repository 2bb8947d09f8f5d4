package forecast

import (
	"math"
	"time"

	"github.com/yanqian/meteo-forecast/pkg/metrics"
)

// WeatherRecord is one day's observation or prediction.
type WeatherRecord struct {
	Date           time.Time `json:"date"`
	Temperature    float64   `json:"temperature"`
	TemperatureMin *float64  `json:"temperatureMin,omitempty"`
	TemperatureMax *float64  `json:"temperatureMax,omitempty"`
	Humidity       float64   `json:"humidity"`
	Pressure       float64   `json:"pressure"`
	WindSpeed      float64   `json:"windSpeed"`
	WindDirection  float64   `json:"windDirection"`
	Precipitation  float64   `json:"precipitation"`
	CloudCover     float64   `json:"cloudCover"`
	UVIndex        float64   `json:"uvIndex"`
	DewPoint       float64   `json:"dewPoint"`
}

// HasDate reports whether the record carries a calendar day.
func (r WeatherRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// Sanitize returns a copy clamped to physical ranges.
func (r WeatherRecord) Sanitize() WeatherRecord {
	out := r
	out.Humidity = clamp(r.Humidity, 0, 100)
	out.CloudCover = clamp(r.CloudCover, 0, 100)
	out.UVIndex = clamp(r.UVIndex, 0, maxUVIndex)
	out.WindSpeed = math.Max(0, r.WindSpeed)
	out.Precipitation = math.Max(0, r.Precipitation)
	out.WindDirection = wrapDegrees(r.WindDirection)
	if r.TemperatureMin != nil && *r.TemperatureMin > r.Temperature {
		v := r.Temperature
		out.TemperatureMin = &v
	}
	if r.TemperatureMax != nil && *r.TemperatureMax < r.Temperature {
		v := r.Temperature
		out.TemperatureMax = &v
	}
	return out
}

const maxUVIndex = 15

// Trends is an immutable summary of a historical series.
type Trends struct {
	TemperatureTrend     float64         `json:"temperatureTrend"`
	HumidityTrend        float64         `json:"humidityTrend"`
	PressureTrend        float64         `json:"pressureTrend"`
	WindSpeedTrend       float64         `json:"windSpeedTrend"`
	UVIndexTrend         float64         `json:"uvIndexTrend"`
	PrecipitationPattern float64         `json:"precipitationPattern"`
	CloudCoverPattern    float64         `json:"cloudCoverPattern"`
	MonthlyPrecipitation [12]float64     `json:"monthlyPrecipitation"`
	MonthlyCloudCover    [12]float64     `json:"monthlyCloudCover"`
	SeasonalAmplitude    float64         `json:"seasonalTemperatureAmplitude"`
	SeasonalPhase        float64         `json:"seasonalPhase"`
	Variation            *DailyVariation `json:"dailyVariation,omitempty"`
	// WindDirectionDrift is the mean signed day-to-day change in degrees.
	WindDirectionDrift *float64 `json:"windDirectionDrift,omitempty"`
	// TemperatureNormals holds the mean temperature around each day of year,
	// indexed by day-1. Nil when history does not cover a full year.
	TemperatureNormals []float64 `json:"-"`
	SampleSize         int       `json:"sampleSize"`
}

// TemperatureNormal returns the historical mean around the given day of year.
func (t Trends) TemperatureNormal(dayOfYear int) (float64, bool) {
	if len(t.TemperatureNormals) == 0 || dayOfYear < 1 || dayOfYear > len(t.TemperatureNormals) {
		return 0, false
	}
	return t.TemperatureNormals[dayOfYear-1], true
}

// DailyVariation describes day-to-day spread over the full history.
type DailyVariation struct {
	TemperatureStdDev float64 `json:"temperatureStdDev"`
	HumidityStdDev    float64 `json:"humidityStdDev"`
	WindSpeedStdDev   float64 `json:"windSpeedStdDev"`
	RainProbability   float64 `json:"rainProbability"`
}

// Source identifies which predictor produced a forecast.
type Source string

const (
	SourceRecurrent   Source = "recurrent"
	SourceStatistical Source = "statistical"
)

// Prediction is the orchestrator output.
type Prediction struct {
	Source  Source          `json:"source"`
	Records []WeatherRecord `json:"records"`
}

// Evaluation holds error metrics on normalized data.
type Evaluation struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// EpochFunc receives training progress. It must not block.
type EpochFunc func(epoch int, loss float64)

// Region is a named forecast location.
type Region struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Request captures a forecast query.
type Request struct {
	Region string `json:"region" binding:"required"`
	Days   int    `json:"days" binding:"omitempty,min=1,max=14"`
}

// DayView decorates a record with its derived labels.
type DayView struct {
	WeatherRecord
	Condition  Condition `json:"condition"`
	Compass    string    `json:"windCompass"`
	UVCategory string    `json:"uvCategory"`
}

// Response is serialized back to API consumers.
type Response struct {
	ID          string    `json:"id"`
	Region      Region    `json:"region"`
	GeneratedAt time.Time `json:"generatedAt"`
	Source      Source    `json:"source"`
	Current     DayView   `json:"current"`
	Days        []DayView `json:"days"`
	Trends      Trends    `json:"trends"`
	HistorySize int       `json:"historySize"`
	Cached      bool      `json:"cached"`
}

// TrainRequest asks for an explicit retraining of a region model.
type TrainRequest struct {
	Region string `json:"region"`
}

// TrainResponse reports the outcome of an explicit training run.
type TrainResponse struct {
	Region     string                `json:"region"`
	Outcome    TrainOutcome          `json:"outcome"`
	Losses     []float64             `json:"losses"`
	Evaluation Evaluation            `json:"evaluation"`
	Stats      metrics.TrainingStats `json:"stats"`
	Status     Status                `json:"status"`
}

// StatusResponse reports a region's model slot.
type StatusResponse struct {
	Region Region `json:"region"`
	Status Status `json:"status"`
}

// Run is one logged forecast.
type Run struct {
	ID          string        `json:"id"`
	Region      string        `json:"region"`
	Source      Source        `json:"source"`
	Days        int           `json:"days"`
	HistorySize int           `json:"historySize"`
	Current     FeatureVector `json:"current"`
	FirstDay    FeatureVector `json:"firstDay"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Config wires runtime settings for the forecast domain.
type Config struct {
	DefaultDays      int
	MaxDays          int
	HistoryYears     int
	MinTrendHistory  int
	RetrainThreshold int
	CacheTTL         time.Duration
	EvaluationDays   int
	// BackgroundTraining trains outside the request that triggered it.
	BackgroundTraining bool
	Model              ModelConfig
}

// ModelConfig controls the recurrent fit schedule.
type ModelConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func wrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
