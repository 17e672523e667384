package main

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/service"
	"github.com/kjstillabower/weather-companion/internal/weather"
)

var (
	headerColor = color.New(color.Bold, color.FgHiWhite)
	dimColor    = color.New(color.FgHiBlack)
	errorColor  = color.New(color.Bold, color.FgRed)
)

// themeColor picks the accent for a theme.
func themeColor(t weather.Theme) *color.Color {
	switch t {
	case weather.ThemeClear:
		return color.New(color.FgYellow)
	case weather.ThemeCloudy, weather.ThemeMisty:
		return color.New(color.FgWhite)
	case weather.ThemeRainy, weather.ThemeDrizzle:
		return color.New(color.FgBlue)
	case weather.ThemeThunderstorm:
		return color.New(color.FgMagenta)
	case weather.ThemeSnowy:
		return color.New(color.FgCyan)
	default:
		return color.New(color.Reset)
	}
}

func render(w io.Writer, s models.WeatherSnapshot) {
	theme := weather.ThemeOf(s)
	accent := themeColor(theme)

	headerColor.Fprintf(w, "%s\n", s.CityName)
	dimColor.Fprintf(w, "%s\n\n", s.Coordinate)

	accent.Fprintf(w, "%d°C  %s\n", int(math.Round(s.Current.TemperatureC)), s.Current.ConditionDescription)
	fmt.Fprintf(w, "Feels like %d°C  Humidity %d%%  Wind %.1f m/s  Pressure %d hPa\n",
		int(math.Round(s.Current.FeelsLikeC)), s.Current.HumidityPct, s.Current.WindSpeedMs, s.Current.PressureHpa)
	fmt.Fprintf(w, "Sunrise %s  Sunset %s\n",
		weather.FormatLocalTime(s.Current.SunriseEpochSec, s.TimezoneOffsetSec),
		weather.FormatLocalTime(s.Current.SunsetEpochSec, s.TimezoneOffsetSec))

	if len(s.DailyForecast) == 0 {
		return
	}
	headerColor.Fprintf(w, "\nForecast\n")
	for _, e := range s.DailyForecast {
		day := e.TimestampText
		if t, err := weather.ParseForecastTime(e); err == nil {
			day = t.Format("Mon Jan 2")
		}
		themeColor(weather.ThemeFor(e.ConditionMain)).Fprintf(w, "  %-10s %4d°C  %s\n",
			day, int(math.Round(e.TemperatureC)), e.ConditionMain)
	}
}

func renderCandidates(w io.Writer, candidates []models.LocationCandidate) {
	if len(candidates) == 0 {
		dimColor.Fprintln(w, "No matching locations")
		return
	}
	for i, c := range candidates {
		fmt.Fprintf(w, "%d. %s ", i+1, c.Label())
		dimColor.Fprintf(w, "%s\n", c.Coordinate)
	}
}

// printError shows user-facing failures as an alert title and message.
func printError(w io.Writer, err error) {
	var ue *service.UserError
	if errors.As(err, &ue) {
		errorColor.Fprintf(w, "%s\n", ue.Title)
		fmt.Fprintln(w, ue.Message)
		return
	}
	errorColor.Fprintf(w, "Error: %v\n", err)
}
