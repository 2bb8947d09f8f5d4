package forecast

import "math"

// Condition is a coarse sky classification.
type Condition struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Classify maps a record to a condition, extremes first.
func Classify(r WeatherRecord) Condition {
	switch {
	case r.WindSpeed > 118:
		return Condition{"stormy", "hurricane"}
	case r.WindSpeed > 88:
		return Condition{"stormy", "cyclone"}
	case r.Precipitation > 50:
		return Condition{"stormy", "torrential rain"}
	case r.Temperature < 0 && r.Precipitation > 5:
		return Condition{"snowy", "snow"}
	case r.Precipitation > 10:
		if r.WindSpeed > 30 && r.CloudCover > 80 {
			return Condition{"stormy", "thunderstorm"}
		}
		return Condition{"rainy", "rain"}
	case r.Precipitation > 2:
		return Condition{"rainy", "drizzle"}
	case r.Humidity > 95 && r.CloudCover > 90 && r.WindSpeed < 10:
		return Condition{"cloudy", "fog"}
	case r.CloudCover > 80:
		return Condition{"cloudy", "overcast"}
	case r.CloudCover > 50:
		return Condition{"cloudy", "cloudy"}
	case r.CloudCover < 20 && r.UVIndex > 3:
		if r.Temperature > 30 {
			return Condition{"sunny", "sunny and hot"}
		}
		return Condition{"sunny", "sunny"}
	case r.CloudCover < 50:
		return Condition{"sunny", "clear"}
	default:
		return Condition{"cloudy", "partly cloudy"}
	}
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassPoint names the 16-point direction closest to degrees.
func CompassPoint(degrees float64) string {
	idx := int(math.Round(wrapDegrees(degrees)/22.5)) % len(compassPoints)
	return compassPoints[idx]
}

// UVCategory buckets a UV index.
func UVCategory(uv float64) string {
	switch {
	case uv <= 2:
		return "low"
	case uv <= 5:
		return "moderate"
	case uv <= 7:
		return "high"
	case uv <= 10:
		return "very_high"
	default:
		return "extreme"
	}
}

func viewOf(r WeatherRecord) DayView {
	return DayView{
		WeatherRecord: r,
		Condition:     Classify(r),
		Compass:       CompassPoint(r.WindDirection),
		UVCategory:    UVCategory(r.UVIndex),
	}
}
