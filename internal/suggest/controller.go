package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
	"github.com/kjstillabower/weather-companion/internal/validation"
)

const (
	// DebounceDelay is the quiet period after the last keystroke before a resolve is issued.
	DebounceDelay = 500 * time.Millisecond
	// MinQueryLength is the shortest trimmed query (in characters) that is resolved.
	MinQueryLength = 2
)

// ErrNoSuchSuggestion is returned by SelectIndex for an index outside the current list.
var ErrNoSuchSuggestion = errors.New("no such suggestion")

type Resolver interface {
	Resolve(ctx context.Context, query string) ([]models.LocationCandidate, error)
}

// Selector fetches weather for a chosen candidate's coordinate.
type Selector interface {
	SelectLocation(ctx context.Context, candidate models.LocationCandidate) error
}

// Submitter runs the explicit search path for free text.
type Submitter interface {
	SubmitSearch(ctx context.Context, query string) error
}

// State is what presentation renders.
type State struct {
	Text        string                     `json:"text"`
	IsFetching  bool                       `json:"isFetching"`
	Suggestions []models.LocationCandidate `json:"suggestions"`
	IsVisible   bool                       `json:"isVisible"`
}

// Timer is the stoppable handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. The default wraps time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

type Option func(*Controller)

// WithAfterFunc replaces the debounce clock.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) { c.afterFunc = fn }
}

func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

func WithMinQueryLength(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.minLen = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller keeps the autocomplete list in sync with typing. Each text change
// bumps a generation counter and cancels the previous timer and resolve; a
// resolve only applies its result if its generation is still current.
type Controller struct {
	resolver  Resolver
	selector  Selector
	submitter Submitter
	debounce  time.Duration
	minLen    int
	afterFunc AfterFunc
	logger    *zap.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	inflight   sync.WaitGroup

	mu         sync.Mutex
	state      State
	generation uint64
	timer      Timer
	cancel     context.CancelFunc
	closed     bool
	nextSub    int
	subs       map[int]func(State)
}

func NewController(resolver Resolver, selector Selector, submitter Submitter, opts ...Option) *Controller {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	c := &Controller{
		resolver:   resolver,
		selector:   selector,
		submitter:  submitter,
		debounce:   DebounceDelay,
		minLen:     MinQueryLength,
		afterFunc:  func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		logger:     zap.NewNop(),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		state:      State{Suggestions: []models.LocationCandidate{}},
		subs:       make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetText records new input. Short input clears the list synchronously; otherwise
// a resolve is scheduled after the debounce delay.
func (c *Controller) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state.Text = text
	gen := c.supersedeLocked()

	if validation.QueryLength(text) < c.minLen {
		c.state.Suggestions = []models.LocationCandidate{}
		c.state.IsVisible = false
		c.notifyLocked()
		return
	}

	c.timer = c.afterFunc(c.debounce, func() { c.fire(gen) })
	c.notifyLocked()
}

// Dismiss hides the list, e.g. when the input loses focus. A pending timer or
// in-flight resolve is dropped so the list stays hidden until the next SetText.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.timer != nil || c.cancel != nil
	if !c.state.IsVisible && !pending {
		return
	}
	c.supersedeLocked()
	c.state.IsVisible = false
	c.notifyLocked()
}

// Select puts the candidate's short name in the input, hides the list and fetches
// weather for the candidate's coordinate without resolving again.
func (c *Controller) Select(ctx context.Context, candidate models.LocationCandidate) error {
	c.mu.Lock()
	c.supersedeLocked()
	c.state.Text = candidate.ShortName()
	c.state.IsVisible = false
	c.notifyLocked()
	c.mu.Unlock()

	return c.selector.SelectLocation(ctx, candidate)
}

// SelectIndex selects the i-th entry of the current suggestion list.
func (c *Controller) SelectIndex(ctx context.Context, i int) error {
	c.mu.Lock()
	if i < 0 || i >= len(c.state.Suggestions) {
		n := len(c.state.Suggestions)
		c.mu.Unlock()
		return fmt.Errorf("%w: index %d of %d", ErrNoSuchSuggestion, i, n)
	}
	candidate := c.state.Suggestions[i]
	c.mu.Unlock()
	return c.Select(ctx, candidate)
}

// Submit hides the list and runs the explicit search for the current text. Its
// error is the only one meant for the user.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	c.supersedeLocked()
	c.state.IsVisible = false
	text := c.state.Text
	c.notifyLocked()
	c.mu.Unlock()

	return c.submitter.SubmitSearch(ctx, text)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive the state after every change. fn runs with
// the controller locked and must not call back into it.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close stops the timer, cancels any resolve and waits for it to return.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.supersedeLocked()
		c.baseCancel()
	}
	c.mu.Unlock()
	c.inflight.Wait()
}

// supersedeLocked invalidates the pending timer and in-flight resolve and returns
// the new generation.
func (c *Controller) supersedeLocked() uint64 {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		observability.SuggestionRequestsTotal.WithLabelValues("superseded").Inc()
	}
	c.state.IsFetching = false
	return c.generation
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}
	c.timer = nil
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	c.state.IsFetching = true
	query := strings.TrimSpace(c.state.Text)
	c.notifyLocked()

	observability.SuggestionRequestsTotal.WithLabelValues("issued").Inc()
	c.inflight.Add(1)
	go c.run(ctx, cancel, gen, query)
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, query string) {
	defer c.inflight.Done()
	defer cancel()

	candidates, err := c.resolver.Resolve(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || ctx.Err() != nil {
		return
	}
	c.cancel = nil
	c.state.IsFetching = false
	if err != nil {
		observability.SuggestionRequestsTotal.WithLabelValues("failed").Inc()
		c.logger.Debug("suggestion resolve failed", zap.String("query", query), zap.Error(err))
		c.state.Suggestions = []models.LocationCandidate{}
		c.state.IsVisible = false
		c.notifyLocked()
		return
	}
	observability.SuggestionRequestsTotal.WithLabelValues("applied").Inc()
	if candidates == nil {
		candidates = []models.LocationCandidate{}
	}
	c.state.Suggestions = candidates
	c.state.IsVisible = len(candidates) > 0
	c.notifyLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Suggestions = append([]models.LocationCandidate{}, c.state.Suggestions...)
	return s
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	s := c.snapshotLocked()
	for _, fn := range c.subs {
		fn(s)
	}
}
