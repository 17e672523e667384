package location

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
	"github.com/kjstillabower/weather-companion/internal/validation"
)

var (
	// ErrPermissionDenied means the device refused (or failed to answer) the permission request.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrLocationFixFailure means permission was granted but no usable fix was obtained.
	ErrLocationFixFailure = errors.New("location fix failure")
)

// DefaultFallback is used when the device cannot supply a coordinate.
var DefaultFallback = models.Coordinate{Latitude: 12.9629, Longitude: 77.5775}

type State int

const (
	Idle State = iota
	RequestingPermission
	PermissionGranted
	PermissionDenied
	AcquiringFix
	UsingFallback
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestingPermission:
		return "requesting_permission"
	case PermissionGranted:
		return "permission_granted"
	case PermissionDenied:
		return "permission_denied"
	case AcquiringFix:
		return "acquiring_fix"
	case UsingFallback:
		return "using_fallback"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	PathDevice   = "device"
	PathFallback = "fallback"
)

// Device is the platform location service.
type Device interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentFix(ctx context.Context) (models.Coordinate, error)
}

type WeatherFetcher interface {
	Fetch(ctx context.Context, coord models.Coordinate) (models.WeatherSnapshot, error)
}

// Result describes how an acquisition ended. Reason is nil on the device path and
// wraps ErrPermissionDenied or ErrLocationFixFailure on the fallback path.
type Result struct {
	Path       string
	Coordinate models.Coordinate
	Reason     error
	Snapshot   models.WeatherSnapshot
}

// Flow obtains a coordinate from the device, falling back to a configured one, and
// always hands exactly one coordinate to the fetcher. Runs are serialized.
type Flow struct {
	device   Device
	fetcher  WeatherFetcher
	fallback models.Coordinate
	logger   *zap.Logger

	runMu sync.Mutex

	mu        sync.Mutex
	state     State
	observers []func(from, to State)
}

func NewFlow(device Device, fetcher WeatherFetcher, fallback models.Coordinate, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		device:   device,
		fetcher:  fetcher,
		fallback: fallback,
		logger:   logger,
		state:    Idle,
	}
}

// OnTransition registers fn to be called for every state change, in order.
func (f *Flow) OnTransition(fn func(from, to State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Fallback returns the configured fallback coordinate.
func (f *Flow) Fallback() models.Coordinate {
	return f.fallback
}

// Acquire runs the full flow: one permission request, then a fix, then the fetch.
func (f *Flow) Acquire(ctx context.Context) (Result, error) {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	f.reset()

	f.transition(RequestingPermission)
	granted, err := f.device.RequestPermission(ctx)
	if err != nil || !granted {
		f.transition(PermissionDenied)
		reason := ErrPermissionDenied
		if err != nil {
			reason = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return f.useFallback(ctx, reason)
	}
	f.transition(PermissionGranted)
	return f.acquireFix(ctx)
}

// Reacquire skips the permission request and goes straight to the fix.
func (f *Flow) Reacquire(ctx context.Context) (Result, error) {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	f.reset()
	return f.acquireFix(ctx)
}

func (f *Flow) acquireFix(ctx context.Context) (Result, error) {
	f.transition(AcquiringFix)
	coord, err := f.device.CurrentFix(ctx)
	if err != nil {
		return f.useFallback(ctx, fmt.Errorf("%w: %w", ErrLocationFixFailure, err))
	}
	if err := validation.ValidateCoordinate(coord); err != nil {
		return f.useFallback(ctx, fmt.Errorf("%w: %w", ErrLocationFixFailure, err))
	}
	f.transition(Resolved)
	return f.exit(ctx, Result{Path: PathDevice, Coordinate: coord})
}

func (f *Flow) useFallback(ctx context.Context, reason error) (Result, error) {
	f.transition(UsingFallback)
	f.logger.Info("using fallback location",
		zap.Stringer("coordinate", f.fallback),
		zap.Error(reason),
	)
	return f.exit(ctx, Result{Path: PathFallback, Coordinate: f.fallback, Reason: reason})
}

func (f *Flow) exit(ctx context.Context, res Result) (Result, error) {
	observability.LocationFlowTotal.WithLabelValues(res.Path, reasonLabel(res.Reason)).Inc()
	snapshot, err := f.fetcher.Fetch(ctx, res.Coordinate)
	if err != nil {
		return res, err
	}
	res.Snapshot = snapshot
	return res, nil
}

func (f *Flow) reset() {
	f.mu.Lock()
	f.state = Idle
	f.mu.Unlock()
}

func (f *Flow) transition(to State) {
	f.mu.Lock()
	from := f.state
	f.state = to
	observers := append([]func(from, to State){}, f.observers...)
	f.mu.Unlock()

	f.logger.Debug("location flow transition", zap.Stringer("from", from), zap.Stringer("to", to))
	for _, fn := range observers {
		fn(from, to)
	}
}

func reasonLabel(reason error) string {
	switch {
	case reason == nil:
		return "none"
	case errors.Is(reason, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(reason, ErrLocationFixFailure):
		return "fix_failure"
	default:
		return "unknown"
	}
}
