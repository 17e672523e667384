package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
)

// MaxCandidates caps every resolved candidate list.
const MaxCandidates = 5

var (
	// ErrGeocodeFailure wraps transport, status and parse failures from a provider.
	ErrGeocodeFailure = errors.New("geocode failure")
	// ErrLocationNotFound is returned by ResolveBest when no candidate matches.
	ErrLocationNotFound = errors.New("location not found")
	// ErrRequestCancelled marks a lookup abandoned by its caller. It is expected and never user-visible.
	ErrRequestCancelled = errors.New("request cancelled")
)

// Provider turns a query into candidates in the provider's own relevance order.
// Each implementation owns its wire format and returns only normalized candidates.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]models.LocationCandidate, error)
}

// Resolver applies the input rules, cap and error taxonomy on top of a Provider.
type Resolver struct {
	provider Provider
	limit    int
	logger   *zap.Logger
}

func NewResolver(provider Provider, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{provider: provider, limit: MaxCandidates, logger: logger}
}

// WithLimit lowers the candidate cap. Values outside 1..MaxCandidates are ignored.
func (r *Resolver) WithLimit(n int) *Resolver {
	if n >= 1 && n <= MaxCandidates {
		r.limit = n
	}
	return r
}

// ProviderName reports the backing provider, for logs and health output.
func (r *Resolver) ProviderName() string {
	return r.provider.Name()
}

// Resolve returns up to the resolver's limit of candidates, rank preserved. An empty or
// whitespace-only query returns an empty result without calling the provider.
// Zero matches is an empty result, not an error.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]models.LocationCandidate, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}

	start := time.Now()
	name := r.provider.Name()
	out, err := r.provider.Search(ctx, q, r.limit)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			observability.RecordGeocodeCall(name, "cancelled", elapsed)
			cause := ctx.Err()
			if cause == nil {
				cause = context.Canceled
			}
			return nil, fmt.Errorf("%w: %w", ErrRequestCancelled, cause)
		}
		observability.RecordGeocodeCall(name, "error", elapsed)
		r.logger.Debug("geocode lookup failed",
			zap.String("provider", name),
			zap.String("query", q),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrGeocodeFailure, name, err)
	}

	if len(out) == 0 {
		observability.RecordGeocodeCall(name, "empty", elapsed)
		return []models.LocationCandidate{}, nil
	}
	observability.RecordGeocodeCall(name, "success", elapsed)
	if len(out) > r.limit {
		out = out[:r.limit]
	}
	return out, nil
}

// ResolveBest returns the top-ranked candidate, or ErrLocationNotFound when the
// query is blank or matches nothing.
func (r *Resolver) ResolveBest(ctx context.Context, query string) (models.LocationCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return models.LocationCandidate{}, ErrLocationNotFound
	}
	candidates, err := r.Resolve(ctx, query)
	if err != nil {
		return models.LocationCandidate{}, err
	}
	if len(candidates) == 0 {
		return models.LocationCandidate{}, fmt.Errorf("%w: %q", ErrLocationNotFound, strings.TrimSpace(query))
	}
	return candidates[0], nil
}
