package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/yanqian/meteo-forecast/pkg/util"
)

const (
	defaultSeasonalAmplitude = 5.0
	seasonalMinRecords       = 365
	windDriftWindow          = 100
	normalHalfWindow         = 15
	daysPerYear              = 365.25
)

// Analyzer derives trends and seasonality from a historical series.
type Analyzer struct {
	minHistory int
	now        func() time.Time
}

// NewAnalyzer builds an analyzer requiring minHistory records for the full
// analysis. Values below 2 fall back to 30.
func NewAnalyzer(minHistory int) *Analyzer {
	if minHistory < 2 {
		minHistory = 30
	}
	return &Analyzer{minHistory: minHistory, now: util.NowUTC}
}

// Analyze never fails. With less history than required it returns zero
// trends, the default seasonal cycle and patterns taken from current.
func (a *Analyzer) Analyze(history []WeatherRecord, current WeatherRecord) Trends {
	if len(history) < a.minHistory {
		return defaultTrends(current, len(history))
	}

	n := len(history)
	temps := make([]float64, n)
	hums := make([]float64, n)
	pressures := make([]float64, n)
	winds := make([]float64, n)
	uvs := make([]float64, n)
	precips := make([]float64, n)
	for i, r := range history {
		temps[i] = r.Temperature
		hums[i] = r.Humidity
		pressures[i] = r.Pressure
		winds[i] = r.WindSpeed
		uvs[i] = r.UVIndex
		precips[i] = r.Precipitation
	}

	t := Trends{
		TemperatureTrend:  linearSlope(temps),
		HumidityTrend:     linearSlope(hums),
		PressureTrend:     linearSlope(pressures),
		WindSpeedTrend:    linearSlope(winds),
		UVIndexTrend:      linearSlope(uvs),
		SeasonalAmplitude: defaultSeasonalAmplitude,
		SampleSize:        n,
	}

	if fit, ok := fitSeasonal(history); ok {
		t.TemperatureTrend = fit.slope
		t.SeasonalAmplitude = fit.amplitude
		t.SeasonalPhase = fit.phase
		t.TemperatureNormals = temperatureNormals(history)
	}

	t.MonthlyPrecipitation, t.MonthlyCloudCover = monthlyClimatology(history)
	month := a.now().Month() - 1
	t.PrecipitationPattern = t.MonthlyPrecipitation[month]
	t.CloudCoverPattern = t.MonthlyCloudCover[month]

	rainy := 0
	for _, p := range precips {
		if p > 0 {
			rainy++
		}
	}
	t.Variation = &DailyVariation{
		TemperatureStdDev: stat.StdDev(temps, nil),
		HumidityStdDev:    stat.StdDev(hums, nil),
		WindSpeedStdDev:   stat.StdDev(winds, nil),
		RainProbability:   float64(rainy) / float64(n),
	}

	if drift, ok := windDirectionDrift(history); ok {
		t.WindDirectionDrift = &drift
	}
	return t
}

func defaultTrends(current WeatherRecord, size int) Trends {
	t := Trends{
		PrecipitationPattern: current.Precipitation,
		CloudCoverPattern:    current.CloudCover,
		SeasonalAmplitude:    defaultSeasonalAmplitude,
		SampleSize:           size,
	}
	for m := range t.MonthlyPrecipitation {
		t.MonthlyPrecipitation[m] = current.Precipitation
		t.MonthlyCloudCover[m] = current.CloudCover
	}
	return t
}

// linearSlope is the least-squares slope of values against their index.
func linearSlope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, values, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}

type seasonalFit struct {
	slope     float64
	amplitude float64
	phase     float64
}

// fitSeasonal regresses temperature on [1, index, sin θ, cos θ] with
// θ = 2π·dayOfYear/365.25, so the annual cycle does not leak into the slope.
// The cycle is amplitude·sin(θ + phase).
func fitSeasonal(history []WeatherRecord) (seasonalFit, bool) {
	rows := make([]float64, 0, len(history)*4)
	ys := make([]float64, 0, len(history))
	for i, r := range history {
		if !r.HasDate() {
			continue
		}
		theta := dayAngle(r.Date)
		rows = append(rows, 1, float64(i), math.Sin(theta), math.Cos(theta))
		ys = append(ys, r.Temperature)
	}
	n := len(ys)
	if n < seasonalMinRecords {
		return seasonalFit{}, false
	}

	x := mat.NewDense(n, 4, rows)
	y := mat.NewVecDense(n, ys)
	var coef mat.VecDense
	if err := coef.SolveVec(x, y); err != nil {
		return fourierFit(rows, ys), true
	}
	a, b := coef.AtVec(2), coef.AtVec(3)
	return seasonalFit{
		slope:     coef.AtVec(1),
		amplitude: math.Hypot(a, b),
		phase:     math.Atan2(b, a),
	}, true
}

// fourierFit projects the centered series onto sin θ and cos θ. Used when
// the joint regression is rank deficient.
func fourierFit(rows, ys []float64) seasonalFit {
	mean := stat.Mean(ys, nil)
	var sa, sb float64
	for i, y := range ys {
		sa += rows[i*4+2] * (y - mean)
		sb += rows[i*4+3] * (y - mean)
	}
	n := float64(len(ys))
	a, b := 2*sa/n, 2*sb/n
	return seasonalFit{amplitude: math.Hypot(a, b), phase: math.Atan2(b, a)}
}

func dayAngle(t time.Time) float64 {
	return 2 * math.Pi * float64(util.DayOfYear(t)) / daysPerYear
}

// monthlyClimatology averages precipitation and cloud cover per calendar
// month. Months without data take the overall mean.
func monthlyClimatology(history []WeatherRecord) (precip, cloud [12]float64) {
	var counts [12]int
	var totalP, totalC float64
	for _, r := range history {
		totalP += r.Precipitation
		totalC += r.CloudCover
		if !r.HasDate() {
			continue
		}
		m := r.Date.Month() - 1
		precip[m] += r.Precipitation
		cloud[m] += r.CloudCover
		counts[m]++
	}
	meanP := totalP / float64(len(history))
	meanC := totalC / float64(len(history))
	for m := range counts {
		if counts[m] == 0 {
			precip[m], cloud[m] = meanP, meanC
			continue
		}
		precip[m] /= float64(counts[m])
		cloud[m] /= float64(counts[m])
	}
	return precip, cloud
}

// windDirectionDrift is the mean wrapped day-to-day direction change over
// the most recent records.
func windDirectionDrift(history []WeatherRecord) (float64, bool) {
	if len(history) < windDriftWindow {
		return 0, false
	}
	recent := history[len(history)-windDriftWindow:]
	var total float64
	for i := 1; i < len(recent); i++ {
		total += signedAngleDelta(recent[i-1].WindDirection, recent[i].WindDirection)
	}
	return total / float64(len(recent)-1), true
}

func signedAngleDelta(from, to float64) float64 {
	d := to - from
	if d > 180 {
		d -= 360
	}
	if d < -180 {
		d += 360
	}
	return d
}

// temperatureNormals averages temperature within ±15 days of every day of
// year, wrapping across the year boundary.
func temperatureNormals(history []WeatherRecord) []float64 {
	const days = 366
	var sums [days]float64
	var counts [days]int
	var total float64
	var dated int
	for _, r := range history {
		if !r.HasDate() {
			continue
		}
		d := util.DayOfYear(r.Date) - 1
		sums[d] += r.Temperature
		counts[d]++
		total += r.Temperature
		dated++
	}
	if dated == 0 {
		return nil
	}
	overall := total / float64(dated)
	normals := make([]float64, days)
	for d := 0; d < days; d++ {
		var s float64
		var c int
		for off := -normalHalfWindow; off <= normalHalfWindow; off++ {
			k := (d + off + days) % days
			s += sums[k]
			c += counts[k]
		}
		if c == 0 {
			normals[d] = overall
			continue
		}
		normals[d] = s / float64(c)
	}
	return normals
}
