package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/kjstillabower/weather-companion/internal/geocode"
	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/service"
)

func init() {
	color.NoColor = true
}

func TestParseCoords(t *testing.T) {
	tests := []struct {
		in      string
		want    models.Coordinate
		wantErr bool
	}{
		{"51.5074,-0.1278", models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}, false},
		{" 12.9629 , 77.5775 ", models.Coordinate{Latitude: 12.9629, Longitude: 77.5775}, false},
		{"51.5", models.Coordinate{}, true},
		{"north,west", models.Coordinate{}, true},
		{"91,0", models.Coordinate{}, true},
		{"0,181", models.Coordinate{}, true},
	}
	for _, tt := range tests {
		got, err := parseCoords(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCoords(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCoords(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	s := models.WeatherSnapshot{
		Coordinate:        models.Coordinate{Latitude: 12.9629, Longitude: 77.5775},
		TimezoneOffsetSec: 19800,
		CityName:          "Bengaluru",
		Current: models.CurrentConditions{
			TemperatureC:         24.6,
			FeelsLikeC:           25.2,
			HumidityPct:          70,
			ConditionMain:        "Clouds",
			ConditionDescription: "scattered clouds",
			SunriseEpochSec:      1700000000,
			SunsetEpochSec:       1700040000,
		},
		DailyForecast: []models.ForecastEntry{
			{TimestampText: "2026-10-15 00:00:00", TemperatureC: 21.4, ConditionMain: "Rain"},
			{TimestampText: "2026-10-16 00:00:00", TemperatureC: 22.5, ConditionMain: "Clear"},
		},
	}
	var buf bytes.Buffer
	render(&buf, s)
	out := buf.String()

	for _, want := range []string{
		"Bengaluru",
		"(12.9629, 77.5775)",
		"25°C  scattered clouds",
		"Sunrise 03:43",
		"Thu Oct 15",
		"23°C  Clear",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCandidates(t *testing.T) {
	var buf bytes.Buffer
	renderCandidates(&buf, []models.LocationCandidate{
		{DisplayName: "London", Region: "England", Country: "GB", Coordinate: models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}},
	})
	if !strings.Contains(buf.String(), "1. London, England, GB (51.5074, -0.1278)") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	renderCandidates(&buf, nil)
	if !strings.Contains(buf.String(), "No matching locations") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, &service.UserError{
		Title:   service.TitleLocationNotFound,
		Message: "Please check the city name and try again.",
		Err:     geocode.ErrLocationNotFound,
	})
	if got := buf.String(); got != "Location Not Found\nPlease check the city name and try again.\n" {
		t.Errorf("printError(UserError) = %q", got)
	}

	buf.Reset()
	printError(&buf, errors.New("config: missing key"))
	if got := buf.String(); got != "Error: config: missing key\n" {
		t.Errorf("printError(error) = %q", got)
	}
}
