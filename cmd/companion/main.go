package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/cache"
	"github.com/kjstillabower/weather-companion/internal/circuitbreaker"
	"github.com/kjstillabower/weather-companion/internal/client"
	"github.com/kjstillabower/weather-companion/internal/config"
	"github.com/kjstillabower/weather-companion/internal/degraded"
	"github.com/kjstillabower/weather-companion/internal/geocode"
	httphandler "github.com/kjstillabower/weather-companion/internal/http"
	"github.com/kjstillabower/weather-companion/internal/lifecycle"
	"github.com/kjstillabower/weather-companion/internal/location"
	"github.com/kjstillabower/weather-companion/internal/notify"
	"github.com/kjstillabower/weather-companion/internal/observability"
	"github.com/kjstillabower/weather-companion/internal/service"
	"github.com/kjstillabower/weather-companion/internal/suggest"
	"github.com/kjstillabower/weather-companion/internal/traffic"
	"github.com/kjstillabower/weather-companion/internal/weather"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	clientOpts := []client.Option{client.WithLogger(logger)}
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "weather_api",
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), float64(to))
			},
		})
		clientOpts = append(clientOpts, client.WithCircuitBreaker(cb))
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, clientOpts...)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(cfg.CacheMaxEntries, cfg.CacheTTL)
		logger.Info("cache backend: in_memory", zap.Int("max_entries", cfg.CacheMaxEntries))
	}

	provider, err := geocode.NewProvider(geocode.ProviderConfig{
		Name:           cfg.GeocodeProvider,
		URL:            cfg.GeocodeURL,
		OpenWeatherKey: cfg.WeatherAPIKey,
		GoogleKey:      cfg.GoogleAPIKey,
		Timeout:        cfg.GeocodeTimeout,
	})
	if err != nil {
		logger.Fatal("geocode provider", zap.Error(err))
	}
	resolver := geocode.NewResolver(
		geocode.NewCachingProvider(provider, cacheSvc, cfg.CacheBackend, cfg.CacheTTL, logger),
		logger,
	).WithLimit(cfg.GeocodeLimit)
	logger.Info("geocode provider", zap.String("provider", resolver.ProviderName()))

	store := weather.NewSnapshotStore()
	fetcher := service.NewCoalescingFetcher(weather.NewAggregator(weatherClient, store, logger), cfg.CoalesceTimeout)
	device := location.StaticDevice{Granted: cfg.PermissionGranted(), Fix: cfg.DeviceFix()}
	flow := location.NewFlow(device, fetcher, cfg.Fallback(), logger)
	flow.OnTransition(func(from, to location.State) {
		logger.Debug("location flow transition", zap.Stringer("from", from), zap.Stringer("to", to))
	})
	weatherService := service.NewWeatherService(resolver, fetcher, flow, store, logger)

	notifier := notify.NewService(notify.NewLogSender(logger), store, notify.Config{
		Enabled:        cfg.NotificationsEnabled,
		DailyHour:      cfg.DailyHour,
		DailyMinute:    cfg.DailyMinute,
		NotifyOnUpdate: cfg.NotifyOnUpdate,
	}, logger)
	unsubscribe := store.Subscribe(notifier.OnSnapshot)
	if err := notifier.Start(); err != nil {
		logger.Fatal("notifications", zap.Error(err))
	}

	suggestions := suggest.NewController(resolver,
		service.Selector{Service: weatherService},
		service.Submitter{Service: weatherService},
		suggest.WithDebounce(cfg.SuggestDebounce),
		suggest.WithMinQueryLength(cfg.SuggestMinQueryLength),
		suggest.WithLogger(logger),
	)

	observability.RegisterFetchWindowGauges(func() (int, int) { return traffic.ErrorRate(cfg.DegradedWindow) })

	// bgCtx bounds cache warming and degraded recovery.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if len(cfg.WarmQueries) > 0 {
		warmer := cache.NewCacheWarmer(resolver, logger)
		go func() {
			if err := warmer.WarmPeriodic(bgCtx, cfg.WarmQueries, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("periodic cache warming stopped", zap.Error(err))
			}
		}()
	}

	startupCtx, startupCancel := context.Background(), context.CancelFunc(func() {})
	if cfg.RequestTimeout > 0 {
		startupCtx, startupCancel = context.WithTimeout(context.Background(), cfg.RequestTimeout)
	}
	if res, err := weatherService.Startup(startupCtx); err != nil {
		logger.Warn("startup weather unavailable", zap.String("path", res.Path), zap.Error(err))
	}
	startupCancel()

	recoverer := degraded.NewRecoverer(bgCtx, weatherClient.ValidateAPIKey, cfg.DegradedRetryInitial, cfg.DegradedRetryMax, logger)
	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:     cfg.DegradedWindow,
		DegradedErrorPct:   cfg.DegradedErrorPct,
		DegradedMinSamples: cfg.DegradedMinSamples,
		OnDegraded:         recoverer.Notify,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(weatherService, suggestions, notifier, healthConfig, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.Router(cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	bgCancel()
	suggestions.Close()
	unsubscribe()
	notifier.Stop()

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
