package weather

import "github.com/kjstillabower/weather-companion/internal/models"

// Theme is a presentation key derived from the dominant condition.
type Theme string

const (
	ThemeClear        Theme = "clear"
	ThemeCloudy       Theme = "cloudy"
	ThemeRainy        Theme = "rainy"
	ThemeDrizzle      Theme = "drizzle"
	ThemeThunderstorm Theme = "thunderstorm"
	ThemeSnowy        Theme = "snowy"
	ThemeMisty        Theme = "misty"
	ThemeDefault      Theme = "default"
)

// ThemeFor maps a condition group ("Clear", "Rain", ...) to its theme. Unknown or empty
// values map to ThemeDefault. Matching is exact, as the upstream values are fixed.
func ThemeFor(conditionMain string) Theme {
	switch conditionMain {
	case "Clear":
		return ThemeClear
	case "Clouds":
		return ThemeCloudy
	case "Rain":
		return ThemeRainy
	case "Drizzle":
		return ThemeDrizzle
	case "Thunderstorm":
		return ThemeThunderstorm
	case "Snow":
		return ThemeSnowy
	case "Mist", "Fog", "Haze":
		return ThemeMisty
	default:
		return ThemeDefault
	}
}

// ThemeOf is ThemeFor applied to a snapshot's current conditions.
func ThemeOf(s models.WeatherSnapshot) Theme {
	return ThemeFor(s.Current.ConditionMain)
}
