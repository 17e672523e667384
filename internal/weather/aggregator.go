package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/client"
	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
	"github.com/kjstillabower/weather-companion/internal/traffic"
	"github.com/kjstillabower/weather-companion/internal/validation"
)

// ErrWeatherFetchFailure wraps any failure of either sub-fetch. The active snapshot is unchanged.
var ErrWeatherFetchFailure = errors.New("weather fetch failure")

// Fetcher retrieves the two independent feeds for a coordinate. *client.OpenWeatherClient implements it.
type Fetcher interface {
	CurrentConditions(ctx context.Context, coord models.Coordinate) (models.CurrentReport, error)
	Forecast(ctx context.Context, coord models.Coordinate) ([]models.ForecastEntry, error)
}

// Aggregator builds snapshots from both feeds and is the only writer of the store.
type Aggregator struct {
	fetcher Fetcher
	store   *SnapshotStore
	logger  *zap.Logger
}

func NewAggregator(fetcher Fetcher, store *SnapshotStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{fetcher: fetcher, store: store, logger: logger}
}

// Store returns the store this aggregator publishes to.
func (a *Aggregator) Store() *SnapshotStore {
	return a.store
}

// Fetch requests current conditions and forecast concurrently and waits for both.
// If either fails the other is cancelled, nothing is published and the error wraps
// ErrWeatherFetchFailure. On success the new snapshot becomes active unless a
// fetch started later has already published.
func (a *Aggregator) Fetch(ctx context.Context, coord models.Coordinate) (models.WeatherSnapshot, error) {
	if err := validation.ValidateCoordinate(coord); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %w", ErrWeatherFetchFailure, err)
	}

	seq := a.store.issue()
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg          sync.WaitGroup
		report      models.CurrentReport
		entries     []models.ForecastEntry
		currentErr  error
		forecastErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		report, currentErr = a.fetcher.CurrentConditions(fetchCtx, coord)
		if currentErr != nil {
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		entries, forecastErr = a.fetcher.Forecast(fetchCtx, coord)
		if forecastErr != nil {
			cancel()
		}
	}()
	wg.Wait()

	if err := firstCause(currentErr, forecastErr); err != nil {
		return models.WeatherSnapshot{}, a.fail(ctx, coord, err)
	}

	snapshot := models.WeatherSnapshot{
		Coordinate:        report.Coordinate,
		TimezoneOffsetSec: report.TimezoneOffsetSec,
		CityName:          report.CityName,
		Current:           report.Current,
		DailyForecast:     SampleDaily(entries),
	}
	if snapshot.Coordinate == (models.Coordinate{}) {
		snapshot.Coordinate = coord
	}

	traffic.RecordSuccess()
	if !a.store.publishIssued(seq, snapshot) {
		a.logger.Info("weather snapshot superseded by a newer fetch",
			zap.String("city", snapshot.CityName),
			zap.String("coordinate", snapshot.Coordinate.Key()),
		)
		return snapshot, nil
	}
	observability.SnapshotsPublishedTotal.Inc()
	a.logger.Info("weather snapshot published",
		zap.String("city", snapshot.CityName),
		zap.String("coordinate", snapshot.Coordinate.Key()),
		zap.String("condition", snapshot.Current.ConditionMain),
		zap.Int("forecast_days", len(snapshot.DailyForecast)),
	)
	return snapshot, nil
}

// firstCause prefers an error that is not the sibling cancellation we triggered ourselves.
func firstCause(currentErr, forecastErr error) error {
	switch {
	case currentErr == nil:
		return forecastErr
	case forecastErr == nil:
		return currentErr
	case errors.Is(currentErr, context.Canceled) && !errors.Is(forecastErr, context.Canceled):
		return forecastErr
	default:
		return currentErr
	}
}

func (a *Aggregator) fail(ctx context.Context, coord models.Coordinate, err error) error {
	category := client.CategorizeError(err)
	if ctx.Err() != nil {
		category = client.ErrorCategoryCancelled
	} else {
		traffic.RecordError()
	}
	observability.WeatherFetchFailuresTotal.WithLabelValues(string(category)).Inc()
	a.logger.Warn("weather fetch failed",
		zap.String("coordinate", coord.Key()),
		zap.String("category", string(category)),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", ErrWeatherFetchFailure, err)
}
