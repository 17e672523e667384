package geocode

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-companion/internal/models"
)

const (
	ProviderOpenMeteo = "open_meteo"

	DefaultOpenMeteoURL = "https://geocoding-api.open-meteo.com"
)

// OpenMeteoProvider uses the keyless Open-Meteo geocoding search.
type OpenMeteoProvider struct {
	baseURL  string
	language string
	hc       HTTPClient
}

func NewOpenMeteoProvider(baseURL string, hc HTTPClient) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: "en",
		hc:       defaultHTTPClient(hc),
	}
}

func (p *OpenMeteoProvider) Name() string { return ProviderOpenMeteo }

type openMeteoResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		Country     string  `json:"country"`
		CountryCode string  `json:"country_code"`
		Admin1      string  `json:"admin1"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
	} `json:"results"`
}

// Search returns an empty result when the response has no "results" key, which
// is how Open-Meteo reports zero matches.
func (p *OpenMeteoProvider) Search(ctx context.Context, query string, limit int) ([]models.LocationCandidate, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(limit))
	params.Set("language", p.language)
	params.Set("format", "json")

	var resp openMeteoResponse
	if err := getJSON(ctx, p.hc, p.baseURL+"/v1/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make([]models.LocationCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		country := r.CountryCode
		if country == "" {
			country = r.Country
		}
		out = append(out, models.LocationCandidate{
			DisplayName: r.Name,
			Country:     country,
			Region:      r.Admin1,
			Coordinate:  models.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
		})
	}
	return out, nil
}
