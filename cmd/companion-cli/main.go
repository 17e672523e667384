// Package main implements a terminal client that prints weather for a searched,
// device-supplied or fallback location.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/client"
	"github.com/kjstillabower/weather-companion/internal/config"
	"github.com/kjstillabower/weather-companion/internal/geocode"
	"github.com/kjstillabower/weather-companion/internal/location"
	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
	"github.com/kjstillabower/weather-companion/internal/service"
	"github.com/kjstillabower/weather-companion/internal/validation"
	"github.com/kjstillabower/weather-companion/internal/weather"
)

var (
	search   = flag.String("search", "", "Search for a location by name and show its weather")
	suggest  = flag.String("suggest", "", "List matching locations without fetching weather")
	coords   = flag.String("coords", "", "Device coordinate as lat,lon (grants location permission)")
	provider = flag.String("provider", "", "Geocoding provider: open_meteo, openweather or google (or set GEOCODE_PROVIDER)")
	timeout  = flag.Duration("timeout", 15*time.Second, "Overall request timeout")
	verbose  = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	logger, err := observability.NewConsoleLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *provider != "" {
		cfg.GeocodeProvider = *provider
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, client.WithLogger(logger))
	if err != nil {
		return err
	}
	p, err := geocode.NewProvider(geocode.ProviderConfig{
		Name:           cfg.GeocodeProvider,
		URL:            cfg.GeocodeURL,
		OpenWeatherKey: cfg.WeatherAPIKey,
		GoogleKey:      cfg.GoogleAPIKey,
		Timeout:        cfg.GeocodeTimeout,
	})
	if err != nil {
		return err
	}
	resolver := geocode.NewResolver(p, logger).WithLimit(cfg.GeocodeLimit)

	device := location.StaticDevice{Granted: cfg.PermissionGranted(), Fix: cfg.DeviceFix()}
	if *coords != "" {
		fix, err := parseCoords(*coords)
		if err != nil {
			return err
		}
		device = location.StaticDevice{Granted: true, Fix: &fix}
	}

	store := weather.NewSnapshotStore()
	fetcher := weather.NewAggregator(weatherClient, store, logger)
	flow := location.NewFlow(device, fetcher, cfg.Fallback(), logger)
	svc := service.NewWeatherService(resolver, fetcher, flow, store, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *suggest != "":
		candidates, err := resolver.Resolve(ctx, *suggest)
		if err != nil {
			return err
		}
		renderCandidates(os.Stdout, candidates)
		return nil
	case *search != "":
		snapshot, err := svc.SubmitSearch(ctx, *search)
		if err != nil {
			return err
		}
		render(os.Stdout, snapshot)
		return nil
	default:
		res, err := svc.Startup(ctx)
		if err != nil {
			return err
		}
		if res.Path == location.PathFallback {
			logger.Info("using fallback location", zap.NamedError("reason", res.Reason))
		}
		render(os.Stdout, res.Snapshot)
		return nil
	}
}

// parseCoords reads "lat,lon" and checks the ranges.
func parseCoords(s string) (models.Coordinate, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return models.Coordinate{}, fmt.Errorf("coords %q: want lat,lon", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("coords latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("coords longitude: %w", err)
	}
	c := models.Coordinate{Latitude: la, Longitude: lo}
	if err := validation.ValidateCoordinate(c); err != nil {
		return models.Coordinate{}, err
	}
	return c, nil
}
