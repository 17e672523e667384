package weather

import (
	"time"

	"github.com/kjstillabower/weather-companion/internal/models"
)

const (
	// SlotsPerDay is the number of 3-hour slots in one day of the forecast feed.
	SlotsPerDay = 8
	// MaxForecastDays caps the sampled daily forecast.
	MaxForecastDays = 5

	forecastTimeLayout = "2006-01-02 15:04:05"
)

// SampleDaily keeps entries at positions 0, 8, 16, 24 and 32, in feed order.
// Shorter feeds yield whichever of those positions exist; nothing is padded or averaged.
func SampleDaily(entries []models.ForecastEntry) []models.ForecastEntry {
	out := make([]models.ForecastEntry, 0, MaxForecastDays)
	for i := 0; i < len(entries) && len(out) < MaxForecastDays; i += SlotsPerDay {
		out = append(out, entries[i])
	}
	return out
}

// ParseForecastTime parses an entry's timestamp text (UTC).
func ParseForecastTime(e models.ForecastEntry) (time.Time, error) {
	return time.ParseInLocation(forecastTimeLayout, e.TimestampText, time.UTC)
}

// FormatLocalTime renders a unix timestamp as HH:MM at the location's UTC offset.
func FormatLocalTime(epochSec int64, offsetSec int) string {
	return time.Unix(epochSec, 0).In(time.FixedZone("", offsetSec)).Format("15:04")
}
