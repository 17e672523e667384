package geocode

import (
	"fmt"
	"net/http"
	"time"
)

// ProviderConfig selects and configures one provider backend.
type ProviderConfig struct {
	Name           string
	URL            string
	OpenWeatherKey string
	GoogleKey      string
	Timeout        time.Duration
}

// NewProvider builds the named provider. An empty name selects Open-Meteo, which needs no key.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	hc := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Name {
	case "", ProviderOpenMeteo:
		return NewOpenMeteoProvider(cfg.URL, hc), nil
	case ProviderOpenWeather:
		return NewOpenWeatherProvider(cfg.OpenWeatherKey, cfg.URL, hc)
	case ProviderGoogle:
		return NewGoogleProvider(cfg.GoogleKey, cfg.URL, hc)
	default:
		return nil, fmt.Errorf("unknown geocode provider %q", cfg.Name)
	}
}
