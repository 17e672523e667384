package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the presentation API.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeather data API calls by endpoint (current, forecast) and status.
	WeatherAPICallsTotal *prometheus.CounterVec

	// OpenWeather data API latency. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Geocoding calls by provider and outcome (success, empty, error, cancelled).
	GeocodeCallsTotal *prometheus.CounterVec

	// Geocoding latency by provider.
	GeocodeDuration *prometheus.HistogramVec

	// Candidate cache hits and misses by backend.
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Candidate cache backend errors by operation (get, set). Lookups proceed without the cache.
	CacheErrorsTotal *prometheus.CounterVec

	// Pre-warm runs and the queries that failed during them.
	CacheWarmingTotal       prometheus.Counter
	CacheWarmingErrorsTotal prometheus.Counter

	// Suggestion resolves by outcome: issued, applied, superseded, failed.
	SuggestionRequestsTotal *prometheus.CounterVec

	// Snapshots published to the active store.
	SnapshotsPublishedTotal prometheus.Counter

	// Aggregated weather fetch failures by error category.
	WeatherFetchFailuresTotal *prometheus.CounterVec

	// Location acquisition outcomes by path (device, fallback) and reason.
	LocationFlowTotal *prometheus.CounterVec

	// Notifications delivered by kind (snapshot, daily).
	NotificationsSentTotal *prometheus.CounterVec

	// Fetches answered by joining an in-flight fetch for the same coordinate.
	FetchCoalescedTotal prometheus.Counter

	// Circuit breaker state per component (0 closed, 1 half-open, 2 open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Requests still in flight when shutdown began waiting.
	ShutdownInFlight prometheus.Gauge

	fetchWindowGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap data API calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap data API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	GeocodeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocodeCallsTotal",
			Help: "Total number of geocoding provider calls",
		},
		[]string{"provider", "outcome"},
	)
	GeocodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geocodeDurationSeconds",
			Help:    "Geocoding provider latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"provider"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of candidate cache hits",
		},
		[]string{"cacheType"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of candidate cache misses",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Candidate cache backend errors by operation",
		},
		[]string{"operation"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of candidate cache pre-warm runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Queries that failed during candidate cache pre-warm",
		},
	)
	SuggestionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestionRequestsTotal",
			Help: "Suggestion resolves by outcome",
		},
		[]string{"outcome"},
	)
	SnapshotsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotsPublishedTotal",
			Help: "Weather snapshots published as the active snapshot",
		},
	)
	WeatherFetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherFetchFailuresTotal",
			Help: "Aggregated weather fetch failures by error category",
		},
		[]string{"category"},
	)
	LocationFlowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationFlowTotal",
			Help: "Location acquisition outcomes by path and reason",
		},
		[]string{"path", "reason"},
	)
	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notificationsSentTotal",
			Help: "Local notifications delivered by kind",
		},
		[]string{"kind"},
	)
	FetchCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchCoalescedTotal",
			Help: "Weather fetches that joined an in-flight fetch for the same coordinate",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	ShutdownInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlight",
			Help: "Requests in flight when shutdown started draining",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		GeocodeCallsTotal, GeocodeDuration,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal,
		SuggestionRequestsTotal, SnapshotsPublishedTotal, WeatherFetchFailuresTotal,
		LocationFlowTotal, NotificationsSentTotal, FetchCoalescedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		ShutdownInFlight,
	)
}

// RegisterFetchWindowGauges exposes the sliding-window fetch counts that drive /health.
// Call from main after config load; later calls are ignored.
func RegisterFetchWindowGauges(errorRate func() (errors, total int)) {
	fetchWindowGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "weatherFetchesInWindow",
					Help: "Weather fetches in the health window",
				},
				func() float64 {
					_, total := errorRate()
					return float64(total)
				},
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "weatherFetchErrorsInWindow",
					Help: "Failed weather fetches in the health window",
				},
				func() float64 {
					errs, _ := errorRate()
					return float64(errs)
				},
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue float64) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(toValue)
}

// RecordGeocodeCall records one provider call outcome and its latency.
func RecordGeocodeCall(provider, outcome string, seconds float64) {
	GeocodeCallsTotal.WithLabelValues(provider, outcome).Inc()
	GeocodeDuration.WithLabelValues(provider).Observe(seconds)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
