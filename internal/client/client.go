package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/circuitbreaker"
	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
)

// DefaultBaseURL is the OpenWeatherMap API host. Paths are appended per endpoint.
const DefaultBaseURL = "https://api.openweathermap.org"

const (
	currentPath  = "/data/2.5/weather"
	forecastPath = "/data/2.5/forecast"

	endpointCurrent  = "current"
	endpointForecast = "forecast"
)

// WeatherClient fetches the two independent data feeds for a coordinate.
type WeatherClient interface {
	CurrentConditions(ctx context.Context, coord models.Coordinate) (models.CurrentReport, error)
	Forecast(ctx context.Context, coord models.Coordinate) ([]models.ForecastEntry, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

// OpenWeatherClient talks to the OpenWeatherMap current and forecast endpoints.
// It never retries; a failed call is reported to the caller as-is.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// Option configures an OpenWeatherClient.
type Option func(*OpenWeatherClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenWeatherClient) { c.client = hc }
}

// WithCircuitBreaker routes every upstream call through cb.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *OpenWeatherClient) { c.breaker = cb }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *OpenWeatherClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOpenWeatherClient builds a client for baseURL (scheme and host, e.g. DefaultBaseURL).
// A zero timeout means requests are bounded only by the caller's context.
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration, opts ...Option) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type currentResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
	Main     struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Weather []weatherCondition `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type weatherCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type forecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp    float64 `json:"temp"`
			TempMax float64 `json:"temp_max"`
			TempMin float64 `json:"temp_min"`
		} `json:"main"`
		Weather []weatherCondition `json:"weather"`
	} `json:"list"`
}

// CurrentConditions fetches the current-conditions feed for coord.
func (c *OpenWeatherClient) CurrentConditions(ctx context.Context, coord models.Coordinate) (models.CurrentReport, error) {
	var apiResp currentResponse
	if err := c.get(ctx, endpointCurrent, currentPath, coord, &apiResp); err != nil {
		return models.CurrentReport{}, err
	}
	return mapCurrent(apiResp), nil
}

// Forecast fetches the 5-day/3-hour forecast feed for coord, in feed order.
func (c *OpenWeatherClient) Forecast(ctx context.Context, coord models.Coordinate) ([]models.ForecastEntry, error) {
	var apiResp forecastResponse
	if err := c.get(ctx, endpointForecast, forecastPath, coord, &apiResp); err != nil {
		return nil, err
	}
	return mapForecast(apiResp), nil
}

func (c *OpenWeatherClient) get(ctx context.Context, endpoint, path string, coord models.Coordinate, out interface{}) error {
	if c.breaker == nil {
		return c.callAPI(ctx, endpoint, path, coord, out)
	}
	return c.breaker.Call(ctx, func() error {
		return c.callAPI(ctx, endpoint, path, coord, out)
	})
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, endpoint, path string, coord models.Coordinate, out interface{}) error {
	start := time.Now()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.buildRequest(reqCtx, path, coord)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s request timeout: %w", endpoint, err)
		}
		return fmt.Errorf("%s http request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := StatusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := CheckResponse(resp); err != nil {
		c.logger.Debug("weather api error response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("coordinate", coord.Key()),
		)
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response body: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse %s response: %v", ErrMalformedPayload, endpoint, err)
	}
	return nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, path string, coord models.Coordinate) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	params.Set("units", "metric")
	params.Set("appid", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func mapCurrent(apiResp currentResponse) models.CurrentReport {
	var cond weatherCondition
	if len(apiResp.Weather) > 0 {
		cond = apiResp.Weather[0]
	}
	return models.CurrentReport{
		Coordinate:        models.Coordinate{Latitude: apiResp.Coord.Lat, Longitude: apiResp.Coord.Lon},
		TimezoneOffsetSec: apiResp.Timezone,
		CityName:          apiResp.Name,
		Current: models.CurrentConditions{
			TemperatureC:         apiResp.Main.Temp,
			FeelsLikeC:           apiResp.Main.FeelsLike,
			HumidityPct:          apiResp.Main.Humidity,
			PressureHpa:          apiResp.Main.Pressure,
			WindSpeedMs:          apiResp.Wind.Speed,
			SunriseEpochSec:      apiResp.Sys.Sunrise,
			SunsetEpochSec:       apiResp.Sys.Sunset,
			ConditionMain:        cond.Main,
			ConditionDescription: cond.Description,
			IconID:               cond.Icon,
		},
	}
}

func mapForecast(apiResp forecastResponse) []models.ForecastEntry {
	entries := make([]models.ForecastEntry, 0, len(apiResp.List))
	for _, item := range apiResp.List {
		e := models.ForecastEntry{
			TimestampText: item.DtTxt,
			TemperatureC:  item.Main.Temp,
			TempMaxC:      item.Main.TempMax,
			TempMinC:      item.Main.TempMin,
		}
		if len(item.Weather) > 0 {
			e.ConditionMain = item.Weather[0].Main
			e.IconID = item.Weather[0].Icon
		}
		entries = append(entries, e)
	}
	return entries
}

// ValidateAPIKey issues one current-conditions call to confirm the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, currentPath, models.Coordinate{Latitude: 51.5074, Longitude: -0.1278})
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

// CheckResponse maps non-2xx OpenWeatherMap-style statuses to sentinel errors.
func CheckResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

// CorrelationID returns the request correlation ID stored on ctx by the HTTP middleware.
func CorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

// StatusLabel buckets an HTTP status code for metric labels.
func StatusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}
