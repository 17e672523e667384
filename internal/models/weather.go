package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Key returns a stable string form used for coalescing and logging.
func (c Coordinate) Key() string {
	return strconv.FormatFloat(c.Latitude, 'f', 4, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 4, 64)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Latitude, c.Longitude)
}

// LocationCandidate is one ranked geocoding result.
type LocationCandidate struct {
	DisplayName string     `json:"displayName"`
	Country     string     `json:"country"`
	Region      string     `json:"region,omitempty"`
	Coordinate  Coordinate `json:"coordinate"`
}

// ShortName is the text placed in the search box when the candidate is chosen.
func (c LocationCandidate) ShortName() string {
	return c.DisplayName
}

// Label is the suggestion-list text: name, region and country, skipping empty parts.
func (c LocationCandidate) Label() string {
	parts := []string{c.DisplayName}
	if c.Region != "" && c.Region != c.DisplayName {
		parts = append(parts, c.Region)
	}
	if c.Country != "" {
		parts = append(parts, c.Country)
	}
	return strings.Join(parts, ", ")
}

type CurrentConditions struct {
	TemperatureC         float64 `json:"temperatureC"`
	FeelsLikeC           float64 `json:"feelsLikeC"`
	HumidityPct          int     `json:"humidityPct"`
	PressureHpa          int     `json:"pressureHpa"`
	WindSpeedMs          float64 `json:"windSpeedMs"`
	SunriseEpochSec      int64   `json:"sunriseEpochSec"`
	SunsetEpochSec       int64   `json:"sunsetEpochSec"`
	ConditionMain        string  `json:"conditionMain"`
	ConditionDescription string  `json:"conditionDescription"`
	IconID               string  `json:"iconId"`
}

// ForecastEntry is one 3-hour slot of the forecast feed. TimestampText keeps the
// upstream "2006-01-02 15:04:05" format.
type ForecastEntry struct {
	TimestampText string  `json:"timestampText"`
	TemperatureC  float64 `json:"temperatureC"`
	TempMaxC      float64 `json:"tempMaxC"`
	TempMinC      float64 `json:"tempMinC"`
	ConditionMain string  `json:"conditionMain"`
	IconID        string  `json:"iconId"`
}

// WeatherSnapshot is the complete record for one location. It is replaced as a
// whole and never mutated after publication.
type WeatherSnapshot struct {
	Coordinate        Coordinate        `json:"coordinate"`
	TimezoneOffsetSec int               `json:"timezoneOffsetSec"`
	CityName          string            `json:"cityName"`
	Current           CurrentConditions `json:"current"`
	DailyForecast     []ForecastEntry   `json:"dailyForecast"`
}

// CurrentReport is the normalized current-conditions response before it is
// combined with the forecast into a snapshot.
type CurrentReport struct {
	Coordinate        Coordinate
	TimezoneOffsetSec int
	CityName          string
	Current           CurrentConditions
}
