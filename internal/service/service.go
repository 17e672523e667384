package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/geocode"
	"github.com/kjstillabower/weather-companion/internal/location"
	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/validation"
)

// User-facing alert titles and messages.
const (
	TitleInputError        = "Error"
	TitleLocationNotFound  = "Location Not Found"
	TitleSearchError       = "Search Error"
	TitleWeatherError      = "Weather Error"
	messageEmptyQuery      = "Please enter a location"
	messageLocationMissing = "Please check the city name and try again."
	messageSearchFailed    = "Failed to search for this location. Please try again."
	messageWeatherFailed   = "Failed to fetch weather data. Please try again."
)

// UserError is a failure of a user-initiated action that presentation should show
// as an alert. The previously active snapshot is unaffected.
type UserError struct {
	Title   string
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Title + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Title, e.Message, e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }

// Geocoder turns free text into the best matching candidate.
type Geocoder interface {
	ResolveBest(ctx context.Context, query string) (models.LocationCandidate, error)
}

// Locator runs the location acquisition flow.
type Locator interface {
	Acquire(ctx context.Context) (location.Result, error)
	Reacquire(ctx context.Context) (location.Result, error)
}

type SnapshotReader interface {
	Active() (models.WeatherSnapshot, bool)
}

// WeatherService is the entry point for every way a snapshot gets produced:
// startup, search, suggestion selection, refresh and current location.
type WeatherService struct {
	geocoder Geocoder
	fetcher  SnapshotFetcher
	locator  Locator
	store    SnapshotReader
	logger   *zap.Logger
}

// NewWeatherService wires the collaborators. fetcher should be the same
// (typically coalescing) fetcher the locator was built with.
func NewWeatherService(geocoder Geocoder, fetcher SnapshotFetcher, locator Locator, store SnapshotReader, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		geocoder: geocoder,
		fetcher:  fetcher,
		locator:  locator,
		store:    store,
		logger:   logger,
	}
}

// loggerFromContext prefers the request-scoped logger set by the HTTP middleware.
func (s *WeatherService) loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return s.logger
}

// Startup runs the full location flow. It always ends in a fetch for some coordinate.
func (s *WeatherService) Startup(ctx context.Context) (location.Result, error) {
	res, err := s.locator.Acquire(ctx)
	s.loggerFromContext(ctx).Info("startup location resolved",
		zap.String("path", res.Path),
		zap.String("coordinate", res.Coordinate.Key()),
		zap.NamedError("reason", res.Reason),
	)
	if err != nil {
		return res, s.weatherError(ctx, err)
	}
	return res, nil
}

// SubmitSearch geocodes free text to its best match and fetches weather there.
func (s *WeatherService) SubmitSearch(ctx context.Context, query string) (models.WeatherSnapshot, error) {
	if validation.QueryLength(query) == 0 {
		return models.WeatherSnapshot{}, &UserError{Title: TitleInputError, Message: messageEmptyQuery, Err: validation.ErrQueryEmpty}
	}
	candidate, err := s.geocoder.ResolveBest(ctx, query)
	if err != nil {
		logger := s.loggerFromContext(ctx)
		if errors.Is(err, geocode.ErrLocationNotFound) {
			logger.Info("search found no location", zap.String("query", query))
			return models.WeatherSnapshot{}, &UserError{Title: TitleLocationNotFound, Message: messageLocationMissing, Err: err}
		}
		logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return models.WeatherSnapshot{}, &UserError{Title: TitleSearchError, Message: messageSearchFailed, Err: err}
	}
	return s.fetch(ctx, candidate.Coordinate)
}

// SelectLocation fetches weather for a chosen suggestion without geocoding again.
func (s *WeatherService) SelectLocation(ctx context.Context, candidate models.LocationCandidate) (models.WeatherSnapshot, error) {
	return s.fetch(ctx, candidate.Coordinate)
}

// Refresh refetches the active coordinate, or reacquires the device location
// when nothing is active yet.
func (s *WeatherService) Refresh(ctx context.Context) (models.WeatherSnapshot, error) {
	if active, ok := s.store.Active(); ok {
		return s.fetch(ctx, active.Coordinate)
	}
	res, err := s.UseCurrentLocation(ctx)
	return res.Snapshot, err
}

// UseCurrentLocation reruns the flow without asking for permission again.
func (s *WeatherService) UseCurrentLocation(ctx context.Context) (location.Result, error) {
	res, err := s.locator.Reacquire(ctx)
	if err != nil {
		return res, s.weatherError(ctx, err)
	}
	return res, nil
}

func (s *WeatherService) Active() (models.WeatherSnapshot, bool) {
	return s.store.Active()
}

func (s *WeatherService) fetch(ctx context.Context, coord models.Coordinate) (models.WeatherSnapshot, error) {
	snapshot, err := s.fetcher.Fetch(ctx, coord)
	if err != nil {
		return models.WeatherSnapshot{}, s.weatherError(ctx, err)
	}
	return snapshot, nil
}

func (s *WeatherService) weatherError(ctx context.Context, err error) error {
	s.loggerFromContext(ctx).Warn("weather unavailable", zap.Error(err))
	return &UserError{Title: TitleWeatherError, Message: messageWeatherFailed, Err: err}
}

// Selector adapts SelectLocation to the suggestion controller's callback shape.
type Selector struct{ Service *WeatherService }

func (a Selector) SelectLocation(ctx context.Context, candidate models.LocationCandidate) error {
	_, err := a.Service.SelectLocation(ctx, candidate)
	return err
}

// Submitter adapts SubmitSearch to the suggestion controller's callback shape.
type Submitter struct{ Service *WeatherService }

func (a Submitter) SubmitSearch(ctx context.Context, query string) error {
	_, err := a.Service.SubmitSearch(ctx, query)
	return err
}
