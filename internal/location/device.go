package location

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-companion/internal/models"
)

// ErrNoFix is returned by StaticDevice when no fix is configured.
var ErrNoFix = errors.New("no device fix configured")

// StaticDevice answers from configuration. The server host has no real sensor.
type StaticDevice struct {
	Granted bool
	Fix     *models.Coordinate
}

func (d StaticDevice) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return d.Granted, nil
}

func (d StaticDevice) CurrentFix(ctx context.Context) (models.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinate{}, err
	}
	if d.Fix == nil {
		return models.Coordinate{}, ErrNoFix
	}
	return *d.Fix, nil
}
