package forecast

import (
	"math"
	"time"

	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
)

// Feature positions inside a FeatureVector.
const (
	FeatureTemperature = iota
	FeatureHumidity
	FeaturePressure
	FeatureWindSpeed
	FeatureWindDirection
	FeaturePrecipitation
	FeatureCloudCover
	FeatureUVIndex
	FeatureDewPoint
	NumFeatures
)

// FeatureVector is the numeric view of a record. The date is dropped.
type FeatureVector [NumFeatures]float64

// Features extracts the numeric fields in feature order.
func (r WeatherRecord) Features() FeatureVector {
	return FeatureVector{
		r.Temperature,
		r.Humidity,
		r.Pressure,
		r.WindSpeed,
		r.WindDirection,
		r.Precipitation,
		r.CloudCover,
		r.UVIndex,
		r.DewPoint,
	}
}

// ToFeatures converts records to feature vectors.
func ToFeatures(records []WeatherRecord) []FeatureVector {
	out := make([]FeatureVector, len(records))
	for i, r := range records {
		out[i] = r.Features()
	}
	return out
}

// FromFeatures builds a predicted record from a raw feature vector, rounding
// and clamping each field into its physical range.
func FromFeatures(v FeatureVector, date time.Time) WeatherRecord {
	return WeatherRecord{
		Date:          date,
		Temperature:   round1(v[FeatureTemperature]),
		Humidity:      clamp(math.Round(v[FeatureHumidity]), 0, 100),
		Pressure:      round1(v[FeaturePressure]),
		WindSpeed:     math.Max(0, round1(v[FeatureWindSpeed])),
		WindDirection: wrapDegrees(math.Round(v[FeatureWindDirection])),
		Precipitation: math.Max(0, round1(v[FeaturePrecipitation])),
		CloudCover:    clamp(math.Round(v[FeatureCloudCover]), 0, 100),
		UVIndex:       clamp(round1(v[FeatureUVIndex]), 0, 12),
		DewPoint:      round1(v[FeatureDewPoint]),
	}
}

// Scaler holds per-feature min-max bounds.
type Scaler struct {
	Min FeatureVector `json:"min"`
	Max FeatureVector `json:"max"`
}

// FitScaler computes column bounds. Only an empty input is rejected;
// constant columns produce a zero range.
func FitScaler(vectors []FeatureVector) (Scaler, error) {
	if len(vectors) == 0 {
		return Scaler{}, apperrors.Wrap(CodeInsufficientData, "cannot fit scaler on empty data", nil)
	}
	s := Scaler{Min: vectors[0], Max: vectors[0]}
	for _, v := range vectors[1:] {
		for j, x := range v {
			s.Min[j] = math.Min(s.Min[j], x)
			s.Max[j] = math.Max(s.Max[j], x)
		}
	}
	return s, nil
}

// DegenerateColumns lists features whose range is zero.
func (s Scaler) DegenerateColumns() []int {
	var cols []int
	for j := range s.Min {
		if s.Max[j]-s.Min[j] == 0 {
			cols = append(cols, j)
		}
	}
	return cols
}

// NormalizeOne maps v into [0,1] per feature. Zero-range features map to 0.
func (s Scaler) NormalizeOne(v FeatureVector) FeatureVector {
	var out FeatureVector
	for j, x := range v {
		span := s.Max[j] - s.Min[j]
		if span == 0 {
			continue
		}
		out[j] = (x - s.Min[j]) / span
	}
	return out
}

// DenormalizeOne inverts NormalizeOne.
func (s Scaler) DenormalizeOne(v FeatureVector) FeatureVector {
	var out FeatureVector
	for j, x := range v {
		out[j] = x*(s.Max[j]-s.Min[j]) + s.Min[j]
	}
	return out
}

// Normalize applies NormalizeOne to every vector.
func (s Scaler) Normalize(vectors []FeatureVector) []FeatureVector {
	out := make([]FeatureVector, len(vectors))
	for i, v := range vectors {
		out[i] = s.NormalizeOne(v)
	}
	return out
}

// Denormalize applies DenormalizeOne to every vector.
func (s Scaler) Denormalize(vectors []FeatureVector) []FeatureVector {
	out := make([]FeatureVector, len(vectors))
	for i, v := range vectors {
		out[i] = s.DenormalizeOne(v)
	}
	return out
}
