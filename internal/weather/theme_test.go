package weather

import (
	"testing"

	"github.com/kjstillabower/weather-companion/internal/models"
)

func TestThemeFor(t *testing.T) {
	tests := []struct {
		in   string
		want Theme
	}{
		{"Clear", ThemeClear},
		{"Clouds", ThemeCloudy},
		{"Rain", ThemeRainy},
		{"Drizzle", ThemeDrizzle},
		{"Thunderstorm", ThemeThunderstorm},
		{"Snow", ThemeSnowy},
		{"Mist", ThemeMisty},
		{"Fog", ThemeMisty},
		{"Haze", ThemeMisty},
		{"Tornado", ThemeDefault},
		{"Smoke", ThemeDefault},
		{"rain", ThemeDefault},
		{"", ThemeDefault},
	}
	for _, tc := range tests {
		if got := ThemeFor(tc.in); got != tc.want {
			t.Errorf("ThemeFor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestThemeOf(t *testing.T) {
	s := models.WeatherSnapshot{Current: models.CurrentConditions{ConditionMain: "Snow"}}
	if got := ThemeOf(s); got != ThemeSnowy {
		t.Errorf("ThemeOf() = %q, want %q", got, ThemeSnowy)
	}
}
