package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kjstillabower/weather-companion/internal/client"
	"github.com/kjstillabower/weather-companion/internal/models"
)

func serve(t *testing.T, wantPath string, check func(*http.Request), status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenWeatherProvider_Search(t *testing.T) {
	server := serve(t, "/geo/1.0/direct", func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Portland" || q.Get("limit") != "5" || q.Get("appid") != "key-123" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
	}, http.StatusOK, `[
		{"name":"Portland","country":"US","state":"Oregon","lat":45.5152,"lon":-122.6784},
		{"name":"Portland","country":"US","state":"Maine","lat":43.6591,"lon":-70.2568},
		{"name":"Portland","country":"AU","lat":-38.3333,"lon":141.6}
	]`)

	p, err := NewOpenWeatherProvider("key-123", server.URL, nil)
	if err != nil {
		t.Fatalf("NewOpenWeatherProvider() error = %v", err)
	}
	got, err := p.Search(context.Background(), "Portland", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []models.LocationCandidate{
		{DisplayName: "Portland", Country: "US", Region: "Oregon", Coordinate: models.Coordinate{Latitude: 45.5152, Longitude: -122.6784}},
		{DisplayName: "Portland", Country: "US", Region: "Maine", Coordinate: models.Coordinate{Latitude: 43.6591, Longitude: -70.2568}},
		{DisplayName: "Portland", Country: "AU", Coordinate: models.Coordinate{Latitude: -38.3333, Longitude: 141.6}},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestOpenWeatherProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"cod":401}`, client.ErrInvalidAPIKey},
		{"server error", http.StatusInternalServerError, ``, client.ErrUpstreamFailure},
		{"malformed", http.StatusOK, `{"not":"an array"}`, client.ErrMalformedPayload},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := serve(t, "/geo/1.0/direct", nil, tc.status, tc.body)
			p, _ := NewOpenWeatherProvider("key-123", server.URL, nil)
			_, err := p.Search(context.Background(), "x", 5)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Search() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestOpenMeteoProvider_Search(t *testing.T) {
	server := serve(t, "/v1/search", func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("name") != "Berlin" || q.Get("count") != "5" || q.Get("format") != "json" || q.Get("language") != "en" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
	}, http.StatusOK, `{"results":[
		{"name":"Berlin","country":"Germany","country_code":"DE","admin1":"Land Berlin","latitude":52.52437,"longitude":13.41053},
		{"name":"Berlin","country":"United States","admin1":"New Hampshire","latitude":44.46867,"longitude":-71.18508}
	]}`)

	got, err := NewOpenMeteoProvider(server.URL, nil).Search(context.Background(), "Berlin", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Country != "DE" || got[0].Region != "Land Berlin" || got[0].Coordinate.Latitude != 52.52437 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Country != "United States" {
		t.Errorf("got[1].Country = %q, want full name when code is missing", got[1].Country)
	}
}

func TestOpenMeteoProvider_NoResultsKey(t *testing.T) {
	server := serve(t, "/v1/search", nil, http.StatusOK, `{"generationtime_ms":0.5}`)
	got, err := NewOpenMeteoProvider(server.URL, nil).Search(context.Background(), "zzzz", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty", got)
	}
}

func TestGoogleProvider_Search(t *testing.T) {
	server := serve(t, "/maps/api/geocode/json", func(r *http.Request) {
		if r.URL.Query().Get("address") != "Springfield" || r.URL.Query().Get("key") != "gkey" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
	}, http.StatusOK, `{"status":"OK","results":[
		{"formatted_address":"Springfield, IL, USA",
		 "address_components":[
			{"long_name":"Springfield","short_name":"Springfield","types":["locality","political"]},
			{"long_name":"Illinois","short_name":"IL","types":["administrative_area_level_1","political"]},
			{"long_name":"United States","short_name":"US","types":["country","political"]}],
		 "geometry":{"location":{"lat":39.7817,"lng":-89.6501}}},
		{"formatted_address":"Springfield Gardens, Queens, NY, USA",
		 "address_components":[],
		 "geometry":{"location":{"lat":40.66,"lng":-73.76}}}
	]}`)

	p, _ := NewGoogleProvider("gkey", server.URL, nil)
	got, err := p.Search(context.Background(), "Springfield", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (limit applied)", len(got))
	}
	want := models.LocationCandidate{
		DisplayName: "Springfield",
		Country:     "US",
		Region:      "Illinois",
		Coordinate:  models.Coordinate{Latitude: 39.7817, Longitude: -89.6501},
	}
	if got[0] != want {
		t.Errorf("got[0] = %+v, want %+v", got[0], want)
	}

	all, _ := p.Search(context.Background(), "Springfield", 5)
	if len(all) != 2 || all[1].DisplayName != "Springfield Gardens" {
		t.Errorf("fallback display name = %+v", all)
	}
}

func TestGoogleProvider_Statuses(t *testing.T) {
	tests := []struct {
		status  string
		wantErr error
		wantLen int
	}{
		{"ZERO_RESULTS", nil, 0},
		{"REQUEST_DENIED", client.ErrInvalidAPIKey, 0},
		{"OVER_QUERY_LIMIT", client.ErrRateLimited, 0},
		{"UNKNOWN_ERROR", client.ErrUpstreamFailure, 0},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			server := serve(t, "/maps/api/geocode/json", nil, http.StatusOK, `{"status":"`+tc.status+`","results":[]}`)
			p, _ := NewGoogleProvider("gkey", server.URL, nil)
			got, err := p.Search(context.Background(), "x", 5)
			if tc.wantErr == nil {
				if err != nil || got == nil || len(got) != 0 {
					t.Errorf("Search() = (%v, %v), want empty result", got, err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Search() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

// TestProviders_SameNormalizedShape checks that the resolver sees identical candidates
// regardless of which wire format produced them.
func TestProviders_SameNormalizedShape(t *testing.T) {
	ow := serve(t, "/geo/1.0/direct", nil, http.StatusOK,
		`[{"name":"Oslo","country":"NO","state":"Oslo","lat":59.9133,"lon":10.739}]`)
	om := serve(t, "/v1/search", nil, http.StatusOK,
		`{"results":[{"name":"Oslo","country":"Norway","country_code":"NO","admin1":"Oslo","latitude":59.9133,"longitude":10.739}]}`)

	owp, _ := NewOpenWeatherProvider("key-123", ow.URL, nil)
	a, errA := NewResolver(owp, nil).ResolveBest(context.Background(), "Oslo")
	b, errB := NewResolver(NewOpenMeteoProvider(om.URL, nil), nil).ResolveBest(context.Background(), "Oslo")
	if errA != nil || errB != nil {
		t.Fatalf("ResolveBest errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Errorf("normalized candidates differ: %+v vs %+v", a, b)
	}
	if a.Label() != "Oslo, NO" {
		t.Errorf("Label() = %q, want %q", a.Label(), "Oslo, NO")
	}
}
