package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/validation"
)

// Config holds service configuration loaded from .env, YAML and environment.
type Config struct {
	ServerPort     string `validate:"required,numeric"`
	RequestTimeout time.Duration

	WeatherAPIKey     string        `validate:"required,min=10"`
	WeatherAPIURL     string        `validate:"required,url"`
	WeatherAPITimeout time.Duration `validate:"gte=0"`

	GeocodeProvider string        `validate:"oneof=open_meteo openweather google"`
	GeocodeURL      string        `validate:"omitempty,url"`
	GeocodeLimit    int           `validate:"gte=1,lte=5"`
	GeocodeTimeout  time.Duration `validate:"gte=0"`
	GoogleAPIKey    string        `validate:"required_if=GeocodeProvider google"`

	CacheBackend          string        `validate:"oneof=in_memory memcached"`
	CacheTTL              time.Duration `validate:"gt=0"`
	CacheMaxEntries       int           `validate:"gt=0"`
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	WarmQueries           []string
	WarmInterval          time.Duration `validate:"gte=0"`

	SuggestDebounce       time.Duration `validate:"gte=0"`
	SuggestMinQueryLength int           `validate:"gte=1"`

	FallbackLat        float64 `validate:"gte=-90,lte=90"`
	FallbackLon        float64 `validate:"gte=-180,lte=180"`
	LocationPermission string  `validate:"oneof=granted denied"`
	DeviceLat          *float64 `validate:"omitempty,gte=-90,lte=90"`
	DeviceLon          *float64 `validate:"omitempty,gte=-180,lte=180"`

	NotificationsEnabled bool
	DailyHour            int `validate:"gte=0,lte=23"`
	DailyMinute          int `validate:"gte=0,lte=59"`
	NotifyOnUpdate       bool

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int `validate:"gte=1"`
	CircuitBreakerSuccessThreshold int `validate:"gte=1"`
	CircuitBreakerTimeout          time.Duration

	CoalesceTimeout time.Duration `validate:"gte=0"`

	ShutdownTimeout       time.Duration `validate:"gt=0"`
	InFlightTimeout       time.Duration `validate:"gt=0"`
	InFlightCheckInterval time.Duration `validate:"gt=0"`

	DegradedWindow     time.Duration `validate:"gt=0"`
	DegradedErrorPct   int           `validate:"gte=1,lte=100"`
	DegradedMinSamples int           `validate:"gte=1"`
	// Recovery probes run at Fibonacci multiples of the initial delay up to the max. Zero disables them.
	DegradedRetryInitial time.Duration `validate:"gte=0"`
	DegradedRetryMax     time.Duration `validate:"gtefield=DegradedRetryInitial"`
}

// Fallback is the coordinate used when the device cannot supply one.
func (c *Config) Fallback() models.Coordinate {
	return models.Coordinate{Latitude: c.FallbackLat, Longitude: c.FallbackLon}
}

// DeviceFix is the configured device coordinate, or nil when none is set.
func (c *Config) DeviceFix() *models.Coordinate {
	if c.DeviceLat == nil || c.DeviceLon == nil {
		return nil
	}
	return &models.Coordinate{Latitude: *c.DeviceLat, Longitude: *c.DeviceLon}
}

// PermissionGranted reports whether the configured device grants location access.
func (c *Config) PermissionGranted() bool {
	return c.LocationPermission == "granted"
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Geocode struct {
		Provider string `yaml:"provider"`
		URL      string `yaml:"url"`
		Limit    int    `yaml:"limit"`
		Timeout  string `yaml:"timeout"`
		Cache    struct {
			Backend    string `yaml:"backend"`
			TTL        string `yaml:"ttl"`
			MaxEntries int    `yaml:"max_entries"`
			Memcached  struct {
				Addrs        string `yaml:"addrs"`
				Timeout      string `yaml:"timeout"`
				MaxIdleConns int    `yaml:"max_idle_conns"`
			} `yaml:"memcached"`
			WarmInterval string `yaml:"warm_interval"`
		} `yaml:"cache"`
		WarmQueries []string `yaml:"warm_queries"`
	} `yaml:"geocode"`

	Suggest struct {
		Debounce       string `yaml:"debounce"`
		MinQueryLength int    `yaml:"min_query_length"`
	} `yaml:"suggest"`

	Location struct {
		FallbackLat *float64 `yaml:"fallback_lat"`
		FallbackLon *float64 `yaml:"fallback_lon"`
		Permission  string   `yaml:"permission"`
		DeviceLat   *float64 `yaml:"device_lat"`
		DeviceLon   *float64 `yaml:"device_lon"`
	} `yaml:"location"`

	Notifications struct {
		Enabled        bool `yaml:"enabled"`
		DailyHour      *int `yaml:"daily_hour"`
		DailyMinute    *int `yaml:"daily_minute"`
		NotifyOnUpdate bool `yaml:"notify_on_update"`
	} `yaml:"notifications"`

	Reliability struct {
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow     string `yaml:"degraded_window"`
		DegradedErrorPct   int    `yaml:"degraded_error_pct"`
		DegradedMinSamples int    `yaml:"degraded_min_samples"`
		RetryInitial       string `yaml:"degraded_retry_initial"`
		RetryMax           string `yaml:"degraded_retry_max"`
	} `yaml:"health"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	GoogleAPIKey  string `yaml:"google_maps_api_key"`
}

// Load reads an optional .env, then config/{ENV_NAME}.yaml (default dev), then
// environment overrides. A missing YAML file means all defaults. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
	}
	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.openweathermap.org")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 0)

	cfg.GeocodeProvider = lower(firstNonEmpty(os.Getenv("GEOCODE_PROVIDER"), fc.Geocode.Provider, "open_meteo"))
	cfg.GeocodeURL = strings.TrimSpace(fc.Geocode.URL)
	cfg.GeocodeLimit = fc.Geocode.Limit
	if cfg.GeocodeLimit <= 0 {
		cfg.GeocodeLimit = 5
	}
	cfg.GeocodeTimeout = parseDurationOrZero(fc.Geocode.Timeout, 0)
	cfg.GoogleAPIKey = firstNonEmpty(os.Getenv("GOOGLE_MAPS_API_KEY"), sec.GoogleAPIKey)

	cfg.CacheBackend = lower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Geocode.Cache.Backend, "in_memory"))
	cfg.CacheTTL = parseDuration(fc.Geocode.Cache.TTL, time.Hour)
	cfg.CacheMaxEntries = fc.Geocode.Cache.MaxEntries
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 1000
	}
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Geocode.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Geocode.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Geocode.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.WarmQueries = fc.Geocode.WarmQueries
	cfg.WarmInterval = parseDurationOrZero(fc.Geocode.Cache.WarmInterval, 0)

	cfg.SuggestDebounce = parseDuration(fc.Suggest.Debounce, 500*time.Millisecond)
	cfg.SuggestMinQueryLength = fc.Suggest.MinQueryLength
	if cfg.SuggestMinQueryLength <= 0 {
		cfg.SuggestMinQueryLength = 2
	}

	cfg.FallbackLat = floatOr(fc.Location.FallbackLat, 12.9629)
	cfg.FallbackLon = floatOr(fc.Location.FallbackLon, 77.5775)
	cfg.LocationPermission = lower(firstNonEmpty(fc.Location.Permission, "denied"))
	cfg.DeviceLat = fc.Location.DeviceLat
	cfg.DeviceLon = fc.Location.DeviceLon

	cfg.NotificationsEnabled = fc.Notifications.Enabled
	cfg.DailyHour = intOr(fc.Notifications.DailyHour, 8)
	cfg.DailyMinute = intOr(fc.Notifications.DailyMinute, 0)
	cfg.NotifyOnUpdate = fc.Notifications.NotifyOnUpdate

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)
	cfg.CoalesceTimeout = parseDurationOrZero(fc.Reliability.CoalesceTimeout, 0)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.DegradedMinSamples = fc.Health.DegradedMinSamples
	if cfg.DegradedMinSamples <= 0 {
		cfg.DegradedMinSamples = 4
	}
	cfg.DegradedRetryInitial = parseDurationOrZero(fc.Health.RetryInitial, time.Minute)
	cfg.DegradedRetryMax = parseDuration(fc.Health.RetryMax, 13*time.Minute)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is kept as-is and means "no timeout" for the fields that use it.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// validate checks field constraints, then the cross-field rules the tags cannot express.
func validate(cfg *Config) error {
	if err := validation.Validator().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if (cfg.DeviceLat == nil) != (cfg.DeviceLon == nil) {
		return fmt.Errorf("invalid config: location.device_lat and location.device_lon must be set together")
	}
	if cfg.CacheBackend == "memcached" && cfg.MemcachedAddrs == "" {
		return fmt.Errorf("invalid config: memcached backend requires addrs")
	}
	return nil
}
