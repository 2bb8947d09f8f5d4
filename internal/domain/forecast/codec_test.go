package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
)

func TestFeaturesFollowFieldOrder(t *testing.T) {
	r := observation()
	v := r.Features()
	require.Equal(t, FeatureVector{30, 90, 1005, 10, 180, 0, 50, 6, 28}, v)
	require.Equal(t, []FeatureVector{v}, ToFeatures([]WeatherRecord{r}))
}

func TestFitScalerConstantColumnsNormalizeToZero(t *testing.T) {
	vectors := ToFeatures([]WeatherRecord{observation(), observation(), observation()})
	s, err := FitScaler(vectors)
	require.NoError(t, err)
	require.Len(t, s.DegenerateColumns(), NumFeatures)

	for _, v := range s.Normalize(vectors) {
		for _, x := range v {
			require.False(t, math.IsNaN(x))
			require.Zero(t, x)
		}
	}
}

func TestFitScalerRejectsEmptyInput(t *testing.T) {
	_, err := FitScaler(nil)
	require.True(t, apperrors.IsCode(err, CodeInsufficientData))
}

func TestNormalizeRoundTrip(t *testing.T) {
	vectors := ToFeatures(syntheticHistory(40))
	s, err := FitScaler(vectors)
	require.NoError(t, err)

	norm := s.Normalize(vectors)
	for _, v := range norm {
		for _, x := range v {
			require.GreaterOrEqual(t, x, 0.0)
			require.LessOrEqual(t, x, 1.0)
		}
	}
	back := s.Denormalize(norm)
	for i := range vectors {
		for j := range vectors[i] {
			require.InDelta(t, vectors[i][j], back[i][j], 1e-9)
		}
	}
}

func TestNormalizeUsesFittedBounds(t *testing.T) {
	s := Scaler{Max: FeatureVector{10, 10, 10, 10, 10, 10, 10, 10, 10}}
	out := s.NormalizeOne(FeatureVector{20, 5})
	require.Equal(t, 2.0, out[0])
	require.Equal(t, 0.5, out[1])
}

func TestFromFeaturesClampsAndRounds(t *testing.T) {
	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	r := FromFeatures(FeatureVector{21.26, 130, 1013.04, -3, 725, -1, -5, 14, 15.55}, date)
	require.Equal(t, date, r.Date)
	require.InDelta(t, 21.3, r.Temperature, 1e-9)
	require.Equal(t, 100.0, r.Humidity)
	require.InDelta(t, 1013.0, r.Pressure, 1e-9)
	require.Zero(t, r.WindSpeed)
	require.Equal(t, 5.0, r.WindDirection)
	require.Zero(t, r.Precipitation)
	require.Zero(t, r.CloudCover)
	require.Equal(t, 12.0, r.UVIndex)
	require.InDelta(t, 15.6, r.DewPoint, 1e-9)
}

func TestSanitize(t *testing.T) {
	lo, hi := 25.0, 20.0
	r := WeatherRecord{Temperature: 22, TemperatureMin: &lo, TemperatureMax: &hi, Humidity: -4, CloudCover: 140, WindDirection: -90, WindSpeed: -1, Precipitation: -2, UVIndex: 20}
	out := r.Sanitize()
	require.Equal(t, 22.0, *out.TemperatureMin)
	require.Equal(t, 22.0, *out.TemperatureMax)
	require.Equal(t, 25.0, lo)
	require.Zero(t, out.Humidity)
	require.Equal(t, 100.0, out.CloudCover)
	require.Equal(t, 270.0, out.WindDirection)
	require.Zero(t, out.WindSpeed)
	require.Zero(t, out.Precipitation)
	require.Equal(t, 15.0, out.UVIndex)
}
