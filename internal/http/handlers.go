package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/lifecycle"
	"github.com/kjstillabower/weather-companion/internal/location"
	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/notify"
	"github.com/kjstillabower/weather-companion/internal/observability"
	"github.com/kjstillabower/weather-companion/internal/service"
	"github.com/kjstillabower/weather-companion/internal/suggest"
	"github.com/kjstillabower/weather-companion/internal/traffic"
	"github.com/kjstillabower/weather-companion/internal/weather"
)

// HealthConfig holds the thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinSamples int
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// OnDegraded, when set, is called each time health evaluates to degraded.
	OnDegraded func()
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   *service.WeatherService
	suggestions      *suggest.Controller
	notifier         *notify.Service
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

func NewHandler(
	weatherService *service.WeatherService,
	suggestions *suggest.Controller,
	notifier *notify.Service,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weatherService: weatherService,
		suggestions:    suggestions,
		notifier:       notifier,
		healthConfig:   healthConfig,
		logger:         logger,
	}
}

// Router registers every route. API routes also get the drain and timeout middleware.
func (h *Handler) Router(requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(h.logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(DrainMiddleware)
	api.Use(TimeoutMiddleware(requestTimeout))
	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/weather/refresh", h.PostRefresh).Methods(http.MethodPost)
	api.HandleFunc("/weather/current-location", h.PostCurrentLocation).Methods(http.MethodPost)
	api.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	api.HandleFunc("/suggestions", h.GetSuggestions).Methods(http.MethodGet)
	api.HandleFunc("/suggestions/text", h.PutSuggestionText).Methods(http.MethodPut)
	api.HandleFunc("/suggestions/select", h.PostSuggestionSelect).Methods(http.MethodPost)
	api.HandleFunc("/suggestions/dismiss", h.PostSuggestionDismiss).Methods(http.MethodPost)
	api.HandleFunc("/notifications", h.GetNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications", h.PutNotifications).Methods(http.MethodPut)
	return router
}

// weatherResponse is the active snapshot plus the values presentation derives from it.
type weatherResponse struct {
	models.WeatherSnapshot
	Theme        weather.Theme `json:"theme"`
	SunriseLocal string        `json:"sunriseLocal"`
	SunsetLocal  string        `json:"sunsetLocal"`
}

func newWeatherResponse(s models.WeatherSnapshot) weatherResponse {
	return weatherResponse{
		WeatherSnapshot: s,
		Theme:           weather.ThemeOf(s),
		SunriseLocal:    weather.FormatLocalTime(s.Current.SunriseEpochSec, s.TimezoneOffsetSec),
		SunsetLocal:     weather.FormatLocalTime(s.Current.SunsetEpochSec, s.TimezoneOffsetSec),
	}
}

// GetWeather handles GET /weather.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.weatherService.Active()
	if !ok {
		writeError(w, r, http.StatusNotFound, "NO_ACTIVE_SNAPSHOT", "No weather has been loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, newWeatherResponse(snapshot))
}

// PostRefresh handles POST /weather/refresh.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.weatherService.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWeatherResponse(snapshot))
}

type locationResponse struct {
	Path       string            `json:"path"`
	Coordinate models.Coordinate `json:"coordinate"`
	Reason     string            `json:"reason,omitempty"`
	Weather    weatherResponse   `json:"weather"`
}

// PostCurrentLocation handles POST /weather/current-location.
func (h *Handler) PostCurrentLocation(w http.ResponseWriter, r *http.Request) {
	res, err := h.weatherService.UseCurrentLocation(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLocationResponse(res))
}

func newLocationResponse(res location.Result) locationResponse {
	resp := locationResponse{
		Path:       res.Path,
		Coordinate: res.Coordinate,
		Weather:    newWeatherResponse(res.Snapshot),
	}
	if res.Reason != nil {
		resp.Reason = res.Reason.Error()
	}
	return resp
}

// PostSearch handles POST /search. An omitted query submits the current suggestion text.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query *string `json:"query"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Query != nil {
		h.suggestions.SetText(*body.Query)
	}
	if err := h.suggestions.Submit(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeActive(w, r)
}

type suggestionView struct {
	models.LocationCandidate
	Label string `json:"label"`
}

type suggestionsResponse struct {
	Text        string           `json:"text"`
	IsFetching  bool             `json:"isFetching"`
	IsVisible   bool             `json:"isVisible"`
	Suggestions []suggestionView `json:"suggestions"`
}

func newSuggestionsResponse(s suggest.State) suggestionsResponse {
	views := make([]suggestionView, 0, len(s.Suggestions))
	for _, c := range s.Suggestions {
		views = append(views, suggestionView{LocationCandidate: c, Label: c.Label()})
	}
	return suggestionsResponse{
		Text:        s.Text,
		IsFetching:  s.IsFetching,
		IsVisible:   s.IsVisible,
		Suggestions: views,
	}
}

// GetSuggestions handles GET /suggestions.
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSuggestionsResponse(h.suggestions.State()))
}

// PutSuggestionText handles PUT /suggestions/text. Results arrive after the debounce delay.
func (h *Handler) PutSuggestionText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.suggestions.SetText(body.Text)
	writeJSON(w, http.StatusAccepted, newSuggestionsResponse(h.suggestions.State()))
}

// PostSuggestionSelect handles POST /suggestions/select.
func (h *Handler) PostSuggestionSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index *int `json:"index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Index == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "index is required")
		return
	}
	if err := h.suggestions.SelectIndex(r.Context(), *body.Index); err != nil {
		if errors.Is(err, suggest.ErrNoSuchSuggestion) {
			writeError(w, r, http.StatusBadRequest, "NO_SUCH_SUGGESTION", err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}
	h.writeActive(w, r)
}

// PostSuggestionDismiss handles POST /suggestions/dismiss.
func (h *Handler) PostSuggestionDismiss(w http.ResponseWriter, r *http.Request) {
	h.suggestions.Dismiss()
	writeJSON(w, http.StatusOK, newSuggestionsResponse(h.suggestions.State()))
}

type notificationsResponse struct {
	Enabled bool `json:"enabled"`
}

// GetNotifications handles GET /notifications.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notificationsResponse{Enabled: h.notifier.IsEnabled()})
}

// PutNotifications handles PUT /notifications.
func (h *Handler) PutNotifications(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Enabled == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "enabled is required")
		return
	}
	enabled, err := h.notifier.SetEnabled(r.Context(), *body.Enabled)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidSchedule) {
			writeError(w, r, http.StatusInternalServerError, "NOTIFICATION_SCHEDULE_INVALID", "Failed to update notification settings")
			return
		}
		// Enabled, but the immediate notification could not be delivered.
		loggerFrom(r, h.logger).Warn("notification send failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Enabled: enabled})
}

func (h *Handler) writeActive(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.weatherService.Active()
	if !ok {
		writeError(w, r, http.StatusNotFound, "NO_ACTIVE_SNAPSHOT", "No weather has been loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, newWeatherResponse(snapshot))
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	} else {
		checks["weatherApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	_, hasSnapshot := h.weatherService.Active()
	body := map[string]interface{}{
		"status":         result.status,
		"service":        "weather-companion",
		"version":        "dev",
		"checks":         checks,
		"activeSnapshot": hasSnapshot,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if d := lifecycle.DrainingFor(); d > 0 {
		body["drainingSeconds"] = int(d.Seconds())
	}
	writeJSON(w, result.statusCode, body)
}

// computeHealthStatus evaluates, in order: shutting-down > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		if traffic.IsDegraded(h.healthConfig.DegradedWindow, float64(h.healthConfig.DegradedErrorPct), h.healthConfig.DegradedMinSamples) {
			if h.healthConfig.OnDegraded != nil {
				h.healthConfig.OnDegraded()
			}
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code      string `json:"code"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

func loggerFrom(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{
		"error": {Code: code, Message: message, RequestID: correlationID(r)},
	})
}

// writeServiceError maps a user-facing failure to a status and the alert text
// presentation should show. Anything else is reported as upstream unavailability.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"
	body := errorBody{Title: service.TitleWeatherError, Message: "Unable to fetch weather data"}

	var ue *service.UserError
	if errors.As(err, &ue) {
		body.Title, body.Message = ue.Title, ue.Message
		switch ue.Title {
		case service.TitleInputError:
			status, code = http.StatusBadRequest, "INVALID_QUERY"
		case service.TitleLocationNotFound:
			status, code = http.StatusNotFound, "LOCATION_NOT_FOUND"
		case service.TitleSearchError:
			status, code = http.StatusBadGateway, "SEARCH_FAILED"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	}
	body.Code = code
	body.RequestID = correlationID(r)
	writeJSON(w, status, map[string]errorBody{"error": body})

	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("request failed", zap.Int("status", status), zap.Error(err))
	}
}

// decodeBody decodes a JSON request body, writing a 400 on failure. An empty body
// decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return false
	}
	return true
}
