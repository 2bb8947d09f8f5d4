package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedAnalyzer(now time.Time) *Analyzer {
	a := NewAnalyzer(30)
	a.now = func() time.Time { return now }
	return a
}

func TestAnalyzeShortHistoryReturnsDefaults(t *testing.T) {
	cur := observation()
	cur.Precipitation = 2.5
	for _, n := range []int{0, 1, 29} {
		tr := fixedAnalyzer(day0).Analyze(syntheticHistory(n), cur)
		require.Zero(t, tr.TemperatureTrend)
		require.Zero(t, tr.HumidityTrend)
		require.Zero(t, tr.PressureTrend)
		require.Zero(t, tr.WindSpeedTrend)
		require.Zero(t, tr.UVIndexTrend)
		require.Equal(t, 5.0, tr.SeasonalAmplitude)
		require.Zero(t, tr.SeasonalPhase)
		require.Equal(t, 2.5, tr.PrecipitationPattern)
		require.Equal(t, 50.0, tr.CloudCoverPattern)
		require.Nil(t, tr.Variation)
		require.Nil(t, tr.WindDirectionDrift)
		require.Equal(t, n, tr.SampleSize)
	}
}

func TestAnalyzeRecoversAnnualCycle(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]WeatherRecord, 400)
	for d := range history {
		history[d] = WeatherRecord{
			Date:        start.AddDate(0, 0, d),
			Temperature: 20 + 5*math.Sin(2*math.Pi*float64(d)/365),
			Humidity:    70,
			Pressure:    1013,
		}
	}

	tr := fixedAnalyzer(start.AddDate(0, 0, 400)).Analyze(history, history[len(history)-1])
	require.InDelta(t, 5.0, tr.SeasonalAmplitude, 1.0)
	require.InDelta(t, 0.0, tr.TemperatureTrend, 0.01)
	require.Len(t, tr.TemperatureNormals, 366)

	// Fitted cycle should track the data at a known point.
	peak := start.AddDate(0, 0, 91)
	model := 20 + tr.SeasonalAmplitude*math.Sin(dayAngle(peak)+tr.SeasonalPhase)
	require.InDelta(t, 25.0, model, 0.5)
}

func TestAnalyzeLinearTrend(t *testing.T) {
	history := make([]WeatherRecord, 60)
	for i := range history {
		history[i] = WeatherRecord{Temperature: 10 + 0.5*float64(i), Pressure: 1020 - 0.1*float64(i), Humidity: 60}
	}
	tr := fixedAnalyzer(day0).Analyze(history, observation())
	require.InDelta(t, 0.5, tr.TemperatureTrend, 1e-9)
	require.InDelta(t, -0.1, tr.PressureTrend, 1e-9)
	require.InDelta(t, 0.0, tr.HumidityTrend, 1e-9)
	require.Equal(t, 5.0, tr.SeasonalAmplitude)
	require.Nil(t, tr.TemperatureNormals)
}

func TestAnalyzeMonthlyClimatology(t *testing.T) {
	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	history := make([]WeatherRecord, 59)
	for i := range history {
		d := start.AddDate(0, 0, i)
		r := WeatherRecord{Date: d, CloudCover: 20}
		if d.Month() == time.March {
			r.Precipitation = 4
			r.CloudCover = 80
		}
		history[i] = r
	}

	tr := fixedAnalyzer(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)).Analyze(history, observation())
	require.Equal(t, 4.0, tr.PrecipitationPattern)
	require.Equal(t, 80.0, tr.CloudCoverPattern)
	require.Zero(t, tr.MonthlyPrecipitation[time.February-1])

	// Months without data take the overall mean.
	meanP := 4.0 * 31 / 59
	require.InDelta(t, meanP, tr.MonthlyPrecipitation[time.July-1], 1e-9)
	require.InDelta(t, 31.0/59, tr.Variation.RainProbability, 1e-9)
}

func TestAnalyzeWindDirectionDrift(t *testing.T) {
	history := syntheticHistory(120)
	for i := range history {
		history[i].WindDirection = math.Mod(float64(i)*10, 360)
	}
	tr := fixedAnalyzer(day0).Analyze(history, observation())
	require.NotNil(t, tr.WindDirectionDrift)
	require.InDelta(t, 10.0, *tr.WindDirectionDrift, 1e-9)

	tr = fixedAnalyzer(day0).Analyze(history[:99], observation())
	require.Nil(t, tr.WindDirectionDrift)
}

func TestAnalyzeDailyVariation(t *testing.T) {
	history := syntheticHistory(40)
	tr := fixedAnalyzer(day0).Analyze(history, observation())
	require.NotNil(t, tr.Variation)
	require.Greater(t, tr.Variation.TemperatureStdDev, 0.0)
	require.Greater(t, tr.Variation.HumidityStdDev, 0.0)
	require.Greater(t, tr.Variation.WindSpeedStdDev, 0.0)
	require.Greater(t, tr.Variation.RainProbability, 0.0)
	require.Less(t, tr.Variation.RainProbability, 1.0)
}

func TestSignedAngleDelta(t *testing.T) {
	require.Equal(t, 20.0, signedAngleDelta(350, 10))
	require.Equal(t, -20.0, signedAngleDelta(10, 350))
	require.Equal(t, 90.0, signedAngleDelta(0, 90))
}
