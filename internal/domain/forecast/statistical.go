package forecast

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/yanqian/meteo-forecast/pkg/util"
)

// Heuristic constants of the fallback model.
const (
	trendDampingRate      = 0.1
	persistenceDecayRate  = 0.3
	humidityPerDegree     = 2.0
	pressureTrendDamping  = 0.5
	pressureSeasonalSwing = 5.0
	cloudHumidityCoupling = 0.4
	uvCloudReduction      = 0.8
	humidRainBaseline     = 0.5
	humidRainPerPercent   = 0.1
	windJitterNoHistory   = 20.0
	windJitterWithDrift   = 15.0
)

// StatisticalPredictor projects days ahead with damped trends, a seasonal
// cycle and cross-variable correlations. It needs no training. Noise comes
// from an injected source so runs are reproducible under a fixed seed.
type StatisticalPredictor struct {
	mu         sync.Mutex
	rng        *rand.Rand
	hemisphere float64
	now        func() time.Time
}

// NewStatisticalPredictor builds a predictor for a location at latitude.
// Seasonal rain and UV peaks follow the local summer.
func NewStatisticalPredictor(src rand.Source, latitude float64) *StatisticalPredictor {
	hemisphere := 1.0
	if latitude >= 0 {
		hemisphere = -1
	}
	return &StatisticalPredictor{
		rng:        rand.New(src),
		hemisphere: hemisphere,
		now:        util.NowUTC,
	}
}

// Predict returns days records dated anchor+1 … anchor+days, where anchor is
// the current record's day or today when it has none.
func (p *StatisticalPredictor) Predict(current WeatherRecord, trends Trends, days int) []WeatherRecord {
	if days <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	anchor := anchorDay(current, p.now)
	anchorSwing := math.Sin(dayAngle(anchor))
	out := make([]WeatherRecord, 0, days)
	for i := 1; i <= days; i++ {
		date := anchor.AddDate(0, 0, i)
		out = append(out, p.day(current, trends, i, date, anchorSwing))
	}
	return out
}

func (p *StatisticalPredictor) day(cur WeatherRecord, tr Trends, i int, date time.Time, anchorSwing float64) WeatherRecord {
	step := float64(i)
	damping := math.Exp(-step * trendDampingRate)
	persistence := math.Exp(-step * persistenceDecayRate)
	theta := dayAngle(date)

	temp := cur.Temperature + tr.TemperatureTrend*step*damping +
		tr.SeasonalAmplitude*math.Sin(theta+tr.SeasonalPhase)*(1-persistence)
	if normal, ok := tr.TemperatureNormal(util.DayOfYear(date)); ok {
		temp += (normal - cur.Temperature) * (1 - persistence)
	}

	humidity := clamp(cur.Humidity+tr.HumidityTrend*step*damping-humidityPerDegree*(temp-cur.Temperature), 0, 100)

	pressure := cur.Pressure + tr.PressureTrend*step*damping*pressureTrendDamping +
		pressureSeasonalSwing*(math.Sin(theta)-anchorSwing)

	windSpeed := math.Max(0, cur.WindSpeed+tr.WindSpeedTrend*step*damping)

	pattern := tr.PrecipitationPattern
	if pattern <= 0 && humidity > 80 {
		pattern = humidRainBaseline + (humidity-80)*humidRainPerPercent
	}
	jitter := 0.7 + 0.6*p.rng.Float64()
	precipitation := math.Max(0, pattern*humidityFactor(humidity)*p.seasonalFactor(theta, 0.8, 0.4)*jitter)

	cloud := clamp(tr.CloudCoverPattern+precipitationCloudBump(precipitation)+(humidity-60)*cloudHumidityCoupling, 0, 100)

	uv := clamp((cur.UVIndex+tr.UVIndexTrend*step*damping)*p.seasonalFactor(theta, 0.7, 0.3)*(1-cloud/100*uvCloudReduction), 0, 12)

	dewPoint := temp - (100-humidity)/5

	var windChange float64
	if tr.WindDirectionDrift != nil {
		windChange = *tr.WindDirectionDrift*step + (p.rng.Float64()-0.5)*windJitterWithDrift*step
	} else {
		windChange = (p.rng.Float64() - 0.5) * windJitterNoHistory * step
	}

	return WeatherRecord{
		Date:          date,
		Temperature:   round1(temp),
		Humidity:      math.Round(humidity),
		Pressure:      round1(pressure),
		WindSpeed:     round1(windSpeed),
		WindDirection: wrapDegrees(math.Round(cur.WindDirection + windChange)),
		Precipitation: round1(precipitation),
		CloudCover:    math.Round(cloud),
		UVIndex:       round1(uv),
		DewPoint:      round1(dewPoint),
	}
}

// seasonalFactor is base + amp·cos θ oriented so the peak falls in the
// local summer. This deliberately differs from base + amp·sin(θ−π/2), which
// peaks in the southern winter.
func (p *StatisticalPredictor) seasonalFactor(theta, base, amp float64) float64 {
	return base + amp*p.hemisphere*math.Cos(theta)
}

func humidityFactor(humidity float64) float64 {
	switch {
	case humidity > 80:
		return 2
	case humidity < 40:
		return 0.2
	default:
		return 1
	}
}

func precipitationCloudBump(mm float64) float64 {
	switch {
	case mm > 5:
		return 30
	case mm > 1:
		return 15
	default:
		return 0
	}
}

func anchorDay(current WeatherRecord, now func() time.Time) time.Time {
	if current.HasDate() {
		return util.StartOfDay(current.Date)
	}
	return util.StartOfDay(now())
}
