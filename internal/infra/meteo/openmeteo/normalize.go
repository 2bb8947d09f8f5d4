package openmeteo

import (
	"math"
	"sort"
	"time"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// Substitutes for fields the upstream leaves empty.
const (
	defaultHumidity      = 60.0
	defaultPressure      = 1013.0
	defaultWindSpeed     = 10.0
	defaultWindDirection = 180.0
	defaultCloudCover    = 30.0
	defaultUVIndex       = 5.0
	clearSkyUVIndex      = 11.0
)

type currentResponse struct {
	Current struct {
		Time             string   `json:"time"`
		Temperature      *float64 `json:"temperature_2m"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
		DewPoint         *float64 `json:"dew_point_2m"`
		Precipitation    *float64 `json:"precipitation"`
		CloudCover       *float64 `json:"cloud_cover"`
		PressureMSL      *float64 `json:"pressure_msl"`
		SurfacePressure  *float64 `json:"surface_pressure"`
		WindSpeed        *float64 `json:"wind_speed_10m"`
		WindDirection    *float64 `json:"wind_direction_10m"`
	} `json:"current"`
	Daily struct {
		TemperatureMax []*float64 `json:"temperature_2m_max"`
		TemperatureMin []*float64 `json:"temperature_2m_min"`
		UVIndexMax     []*float64 `json:"uv_index_max"`
	} `json:"daily"`
}

type archiveResponse struct {
	Daily dailySeries `json:"daily"`
}

type dailySeries struct {
	Time             []string   `json:"time"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	TemperatureMean  []*float64 `json:"temperature_2m_mean"`
	Precipitation    []*float64 `json:"precipitation_sum"`
	WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
	WindDirection    []*float64 `json:"wind_direction_10m_dominant"`
	RelativeHumidity []*float64 `json:"relative_humidity_2m_mean"`
	DewPoint         []*float64 `json:"dew_point_2m_mean"`
	PressureMSL      []*float64 `json:"pressure_msl_mean"`
	CloudCover       []*float64 `json:"cloud_cover_mean"`
}

func normalizeCurrent(p currentResponse) forecast.WeatherRecord {
	cur := p.Current
	temp := value(cur.Temperature, 0)
	humidity := value(cur.RelativeHumidity, defaultHumidity)
	pressure := value(cur.PressureMSL, value(cur.SurfacePressure, defaultPressure))
	rec := forecast.WeatherRecord{
		Date:          parseLocal(cur.Time),
		Temperature:   round1(temp),
		Humidity:      math.Round(humidity),
		Pressure:      round1(pressure),
		WindSpeed:     round1(value(cur.WindSpeed, defaultWindSpeed)),
		WindDirection: math.Round(value(cur.WindDirection, defaultWindDirection)),
		Precipitation: round1(value(cur.Precipitation, 0)),
		CloudCover:    math.Round(value(cur.CloudCover, defaultCloudCover)),
		UVIndex:       round1(value(at(p.Daily.UVIndexMax, 0), defaultUVIndex)),
		DewPoint:      round1(value(cur.DewPoint, dewPoint(temp, humidity))),
	}
	if v := at(p.Daily.TemperatureMin, 0); v != nil {
		lo := round1(*v)
		rec.TemperatureMin = &lo
	}
	if v := at(p.Daily.TemperatureMax, 0); v != nil {
		hi := round1(*v)
		rec.TemperatureMax = &hi
	}
	return rec.Sanitize()
}

// normalizeDaily converts the archive columns into records. Days without a
// temperature are dropped; other gaps are estimated.
func normalizeDaily(d dailySeries) []forecast.WeatherRecord {
	out := make([]forecast.WeatherRecord, 0, len(d.Time))
	for i, day := range d.Time {
		date, err := time.Parse(time.DateOnly, day)
		if err != nil {
			continue
		}
		lo, hi := at(d.TemperatureMin, i), at(d.TemperatureMax, i)
		temp, ok := dailyTemperature(at(d.TemperatureMean, i), lo, hi)
		if !ok {
			continue
		}
		humidity := value(at(d.RelativeHumidity, i), defaultHumidity)
		cloud := value(at(d.CloudCover, i), defaultCloudCover)
		rec := forecast.WeatherRecord{
			Date:          date,
			Temperature:   round1(temp),
			Humidity:      math.Round(humidity),
			Pressure:      round1(value(at(d.PressureMSL, i), defaultPressure)),
			WindSpeed:     round1(value(at(d.WindSpeedMax, i), defaultWindSpeed)),
			WindDirection: math.Round(value(at(d.WindDirection, i), defaultWindDirection)),
			Precipitation: round1(value(at(d.Precipitation, i), 0)),
			CloudCover:    math.Round(cloud),
			UVIndex:       round1(uvFromCloudCover(cloud)),
			DewPoint:      round1(value(at(d.DewPoint, i), dewPoint(temp, humidity))),
		}
		if lo != nil {
			v := round1(*lo)
			rec.TemperatureMin = &v
		}
		if hi != nil {
			v := round1(*hi)
			rec.TemperatureMax = &v
		}
		out = append(out, rec.Sanitize())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func dailyTemperature(mean, lo, hi *float64) (float64, bool) {
	switch {
	case mean != nil:
		return *mean, true
	case lo != nil && hi != nil:
		return (*lo + *hi) / 2, true
	default:
		return 0, false
	}
}

// dewPoint uses the Magnus approximation.
func dewPoint(tempC, humidity float64) float64 {
	const b, c = 17.62, 243.12
	rh := math.Max(humidity, 1) / 100
	gamma := math.Log(rh) + b*tempC/(c+tempC)
	return c * gamma / (b - gamma)
}

// uvFromCloudCover estimates the daily UV maximum, which the archive does
// not provide.
func uvFromCloudCover(cloud float64) float64 {
	return clearSkyUVIndex * (1 - 0.75*math.Min(math.Max(cloud, 0), 100)/100)
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func value(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return *v
}

func parseLocal(ts string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
