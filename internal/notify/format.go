package notify

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-companion/internal/models"
)

const (
	KindSnapshot = "snapshot"
	KindDaily    = "daily"

	dailyTitle = "🌤️ Good Morning!"
	dailyBody  = "Check today's weather forecast"
)

// Notification is one message handed to a Sender.
type Notification struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// EmojiFor picks the title glyph for a condition group.
func EmojiFor(conditionMain string) string {
	switch conditionMain {
	case "Clouds":
		return "☁️"
	case "Rain", "Drizzle":
		return "🌧️"
	case "Thunderstorm":
		return "⛈️"
	case "Snow":
		return "❄️"
	case "Mist", "Fog":
		return "🌫️"
	default:
		return "☀️"
	}
}

// SnapshotNotification formats the update message for a snapshot.
func SnapshotNotification(s models.WeatherSnapshot) Notification {
	return Notification{
		ID:    uuid.NewString(),
		Title: EmojiFor(s.Current.ConditionMain) + " Weather Update",
		Body:  fmt.Sprintf("%s: %d°C, %s", s.CityName, int(math.Round(s.Current.TemperatureC)), s.Current.ConditionDescription),
		Data: map[string]string{
			"kind":       KindSnapshot,
			"city":       s.CityName,
			"coordinate": s.Coordinate.Key(),
		},
	}
}

func DailyReminder() Notification {
	return Notification{
		ID:    uuid.NewString(),
		Title: dailyTitle,
		Body:  dailyBody,
		Data:  map[string]string{"kind": KindDaily},
	}
}
