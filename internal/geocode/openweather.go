package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-companion/internal/client"
	"github.com/kjstillabower/weather-companion/internal/models"
)

const ProviderOpenWeather = "openweather"

// OpenWeatherProvider uses the OpenWeatherMap direct geocoding endpoint (API key required).
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	hc      HTTPClient
}

// NewOpenWeatherProvider builds the keyed provider. baseURL defaults to client.DefaultBaseURL.
func NewOpenWeatherProvider(apiKey, baseURL string, hc HTTPClient) (*OpenWeatherProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", client.ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = client.DefaultBaseURL
	}
	return &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      defaultHTTPClient(hc),
	}, nil
}

func (p *OpenWeatherProvider) Name() string { return ProviderOpenWeather }

type openWeatherPlace struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (p *OpenWeatherProvider) Search(ctx context.Context, query string, limit int) ([]models.LocationCandidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("appid", p.apiKey)

	var places []openWeatherPlace
	if err := getJSON(ctx, p.hc, p.baseURL+"/geo/1.0/direct?"+params.Encode(), &places); err != nil {
		return nil, err
	}

	out := make([]models.LocationCandidate, 0, len(places))
	for _, pl := range places {
		out = append(out, models.LocationCandidate{
			DisplayName: pl.Name,
			Country:     pl.Country,
			Region:      pl.State,
			Coordinate:  models.Coordinate{Latitude: pl.Lat, Longitude: pl.Lon},
		})
	}
	return out, nil
}
