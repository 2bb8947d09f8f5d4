package forecast

import (
	"io"
	"log/slog"
	"math"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// syntheticHistory builds n daily records ending the day before day0.
func syntheticHistory(n int) []WeatherRecord {
	out := make([]WeatherRecord, n)
	start := day0.AddDate(0, 0, -n)
	for i := range out {
		x := float64(i)
		out[i] = WeatherRecord{
			Date:          start.AddDate(0, 0, i),
			Temperature:   22 + 3*math.Sin(x/5),
			Humidity:      70 + 10*math.Cos(x/7),
			Pressure:      1012 + math.Sin(x/3),
			WindSpeed:     12 + 2*math.Sin(x/4),
			WindDirection: math.Mod(150+x*7, 360),
			Precipitation: math.Max(0, 3*math.Sin(x/2)),
			CloudCover:    45 + 20*math.Sin(x/6),
			UVIndex:       6 + 2*math.Cos(x/8),
			DewPoint:      16 + math.Sin(x/5),
		}
	}
	return out
}

func observation() WeatherRecord {
	return WeatherRecord{
		Date:          day0,
		Temperature:   30,
		Humidity:      90,
		Pressure:      1005,
		WindSpeed:     10,
		WindDirection: 180,
		Precipitation: 0,
		CloudCover:    50,
		UVIndex:       6,
		DewPoint:      28,
	}
}
