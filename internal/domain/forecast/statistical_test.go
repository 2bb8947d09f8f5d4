package forecast

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const antananarivoLatitude = -18.8792

func seededPredictor(seed int64) *StatisticalPredictor {
	p := NewStatisticalPredictor(rand.NewSource(seed), antananarivoLatitude)
	p.now = func() time.Time { return day0 }
	return p
}

func requirePhysicalRanges(t *testing.T, r WeatherRecord) {
	t.Helper()
	require.GreaterOrEqual(t, r.Humidity, 0.0)
	require.LessOrEqual(t, r.Humidity, 100.0)
	require.GreaterOrEqual(t, r.CloudCover, 0.0)
	require.LessOrEqual(t, r.CloudCover, 100.0)
	require.GreaterOrEqual(t, r.UVIndex, 0.0)
	require.LessOrEqual(t, r.UVIndex, 12.0)
	require.GreaterOrEqual(t, r.WindSpeed, 0.0)
	require.GreaterOrEqual(t, r.Precipitation, 0.0)
	require.GreaterOrEqual(t, r.WindDirection, 0.0)
	require.Less(t, r.WindDirection, 360.0)
}

func TestStatisticalPredictorRespectsRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		cur := WeatherRecord{
			Temperature:   rng.Float64()*60 - 20,
			Humidity:      rng.Float64() * 100,
			Pressure:      950 + rng.Float64()*100,
			WindSpeed:     rng.Float64() * 80,
			WindDirection: rng.Float64() * 359,
			Precipitation: rng.Float64() * 40,
			CloudCover:    rng.Float64() * 100,
			UVIndex:       rng.Float64() * 12,
		}
		drift := rng.Float64()*40 - 20
		tr := Trends{
			TemperatureTrend:     rng.Float64()*4 - 2,
			HumidityTrend:        rng.Float64()*10 - 5,
			PressureTrend:        rng.Float64()*2 - 1,
			WindSpeedTrend:       rng.Float64()*10 - 5,
			UVIndexTrend:         rng.Float64()*2 - 1,
			PrecipitationPattern: rng.Float64() * 20,
			CloudCoverPattern:    rng.Float64() * 120,
			SeasonalAmplitude:    rng.Float64() * 10,
			SeasonalPhase:        rng.Float64() * 2 * math.Pi,
		}
		if i%2 == 0 {
			tr.WindDirectionDrift = &drift
		}
		lat := antananarivoLatitude
		if i%3 == 0 {
			lat = 48.8
		}
		out := NewStatisticalPredictor(rand.NewSource(int64(i)), lat).Predict(cur, tr, 14)
		require.Len(t, out, 14)
		for _, r := range out {
			requirePhysicalRanges(t, r)
		}
	}
}

func TestStatisticalPredictorDatesFollowAnchor(t *testing.T) {
	out := seededPredictor(1).Predict(observation(), Trends{}, 5)
	require.Len(t, out, 5)
	for i, r := range out {
		require.Equal(t, day0.AddDate(0, 0, i+1), r.Date)
	}

	undated := observation()
	undated.Date = time.Time{}
	out = seededPredictor(1).Predict(undated, Trends{}, 2)
	require.Equal(t, day0.AddDate(0, 0, 1), out[0].Date)

	require.Empty(t, seededPredictor(1).Predict(observation(), Trends{}, 0))
}

func TestStatisticalPredictorHumidRainScenario(t *testing.T) {
	cur := observation()
	cur.Date = time.Time{}
	for seed := int64(0); seed < 50; seed++ {
		out := seededPredictor(seed).Predict(cur, Trends{}, 1)
		require.Len(t, out, 1)
		require.Equal(t, 90.0, out[0].Humidity)
		require.Greater(t, out[0].Precipitation, 0.0, "seed %d", seed)
	}
}

func TestStatisticalPredictorIsReproducibleWithSeed(t *testing.T) {
	tr := Trends{TemperatureTrend: 0.2, PrecipitationPattern: 3, CloudCoverPattern: 40, SeasonalAmplitude: 4}
	a := seededPredictor(9).Predict(observation(), tr, 7)
	b := seededPredictor(9).Predict(observation(), tr, 7)
	require.Equal(t, a, b)
}

func TestStatisticalPredictorHumidityFallsAsTemperatureRises(t *testing.T) {
	cur := observation()
	cur.Humidity = 60
	out := seededPredictor(3).Predict(cur, Trends{TemperatureTrend: 1}, 3)
	for _, r := range out {
		require.Greater(t, r.Temperature, cur.Temperature)
		require.Less(t, r.Humidity, cur.Humidity)
		require.InDelta(t, r.Temperature-(100-r.Humidity)/5, r.DewPoint, 0.25)
	}
}

func TestStatisticalPredictorRelaxesTowardNormals(t *testing.T) {
	normals := make([]float64, 366)
	for i := range normals {
		normals[i] = 20
	}
	out := seededPredictor(5).Predict(observation(), Trends{TemperatureNormals: normals}, 10)
	for i := 1; i < len(out); i++ {
		require.LessOrEqual(t, out[i].Temperature, out[i-1].Temperature)
	}
	require.Greater(t, out[0].Temperature, 20.0)
	require.Less(t, out[9].Temperature, 22.0)
}

func TestStatisticalPredictorKeepsSeasonalCycleWithNormals(t *testing.T) {
	cur := observation()
	trends := Trends{
		SeasonalAmplitude: 10,
		SeasonalPhase:     math.Pi/2 - dayAngle(day0.AddDate(0, 0, 1)),
	}
	want := cur.Temperature + 10*(1-math.Exp(-persistenceDecayRate))

	plain := seededPredictor(3).Predict(cur, trends, 1)
	require.InDelta(t, want, plain[0].Temperature, 0.05)

	normals := make([]float64, 366)
	for i := range normals {
		normals[i] = cur.Temperature
	}
	trends.TemperatureNormals = normals
	withNormals := seededPredictor(3).Predict(cur, trends, 1)
	require.InDelta(t, want, withNormals[0].Temperature, 0.05)

	for i := range normals {
		normals[i] = cur.Temperature - 5
	}
	cooler := seededPredictor(3).Predict(cur, trends, 1)
	require.Less(t, cooler[0].Temperature, withNormals[0].Temperature)
	require.Greater(t, cooler[0].Temperature, cur.Temperature)
}

func TestStatisticalPredictorWindDrift(t *testing.T) {
	drift := 30.0
	cur := observation()
	out := seededPredictor(11).Predict(cur, Trends{WindDirectionDrift: &drift}, 3)
	for i, r := range out {
		step := float64(i + 1)
		want := cur.WindDirection + drift*step
		require.InDelta(t, want, r.WindDirection, 7.5*step+0.5)
	}
}

func TestHumidityFactor(t *testing.T) {
	require.Equal(t, 2.0, humidityFactor(81))
	require.Equal(t, 1.0, humidityFactor(80))
	require.Equal(t, 1.0, humidityFactor(40))
	require.Equal(t, 0.2, humidityFactor(39))
}
