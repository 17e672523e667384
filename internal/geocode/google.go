package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kjstillabower/weather-companion/internal/client"
	"github.com/kjstillabower/weather-companion/internal/models"
)

const (
	ProviderGoogle = "google"

	DefaultGoogleURL = "https://maps.googleapis.com"
)

// GoogleProvider uses the Google Maps Geocoding API (API key required).
type GoogleProvider struct {
	apiKey  string
	baseURL string
	hc      HTTPClient
}

func NewGoogleProvider(apiKey, baseURL string, hc HTTPClient) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Google Maps API key is required", client.ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	return &GoogleProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      defaultHTTPClient(hc),
	}, nil
}

func (p *GoogleProvider) Name() string { return ProviderGoogle }

type googleAddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress  string                   `json:"formatted_address"`
		AddressComponents []googleAddressComponent `json:"address_components"`
		Geometry          struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Search maps the response status: ZERO_RESULTS is an empty result, any other
// non-OK status is an error. Google has no limit parameter, so results are truncated here.
func (p *GoogleProvider) Search(ctx context.Context, query string, limit int) ([]models.LocationCandidate, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", p.apiKey)

	var resp googleResponse
	if err := getJSON(ctx, p.hc, p.baseURL+"/maps/api/geocode/json?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []models.LocationCandidate{}, nil
	case "REQUEST_DENIED":
		return nil, fmt.Errorf("%w: %s", client.ErrInvalidAPIKey, resp.ErrorMessage)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, fmt.Errorf("%w: %s", client.ErrRateLimited, resp.Status)
	default:
		return nil, fmt.Errorf("%w: status %s", client.ErrUpstreamFailure, resp.Status)
	}

	out := make([]models.LocationCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if limit > 0 && len(out) == limit {
			break
		}
		c := models.LocationCandidate{
			Coordinate: models.Coordinate{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng},
		}
		for _, comp := range r.AddressComponents {
			switch {
			case hasType(comp.Types, "locality") && c.DisplayName == "":
				c.DisplayName = comp.LongName
			case hasType(comp.Types, "administrative_area_level_1"):
				c.Region = comp.LongName
			case hasType(comp.Types, "country"):
				c.Country = comp.ShortName
			}
		}
		if c.DisplayName == "" {
			c.DisplayName, _, _ = strings.Cut(r.FormattedAddress, ",")
		}
		out = append(out, c)
	}
	return out, nil
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
