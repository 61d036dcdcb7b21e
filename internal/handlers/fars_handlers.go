package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"fars-analytics/internal/models"
	"fars-analytics/internal/repository"
	"fars-analytics/internal/services"
	"fars-analytics/pkg/checksum"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

// maxYearsPerRequest bounds the files one summary request may open
const maxYearsPerRequest = 50

// FARSHandler handles the accident summary and map endpoints
type FARSHandler struct {
	summaryService *services.SummaryService
	mapService     *services.MapService
	repo           repository.SummaryRepository
	mapContentType string
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
	requestSeq     atomic.Uint64
}

// NewFARSHandler creates a new handler. repo may be nil when no database is configured.
func NewFARSHandler(
	summaryService *services.SummaryService,
	mapService *services.MapService,
	repo repository.SummaryRepository,
	mapContentType string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *FARSHandler {
	return &FARSHandler{
		summaryService: summaryService,
		mapService:     mapService,
		repo:           repo,
		mapContentType: mapContentType,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// GetSummary handles GET /api/fars/summary?years=2013,2014
func (h *FARSHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const endpoint = "/api/fars/summary"
	defer h.observe(endpoint, time.Now())

	years, err := parseYears(r.URL.Query()["years"])
	if err != nil {
		h.metrics.RecordAPIError("bad_request", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.summaryService.SummarizeYears(ctx, years)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_SUMMARY_ERROR] Failed to summarize years", logging.Fields{
			"years": r.URL.Query()["years"],
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "failed to summarize accident counts", http.StatusInternalServerError)
		return
	}

	h.sendCacheableJSON(w, r, endpoint, summary)
}

// GetStoredSummary handles GET /api/fars/stored?years=2013,2014
func (h *FARSHandler) GetStoredSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const endpoint = "/api/fars/stored"
	defer h.observe(endpoint, time.Now())

	years, err := parseYears(r.URL.Query()["years"])
	if err != nil {
		h.metrics.RecordAPIError("bad_request", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.repo.GetSummary(ctx, years)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STORED_ERROR] Failed to read stored counts", logging.Fields{
			"years": r.URL.Query()["years"],
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "failed to read stored accident counts", http.StatusInternalServerError)
		return
	}

	h.sendCacheableJSON(w, r, endpoint, summary)
}

// GetMap handles GET /api/fars/map?state=1&year=2013
func (h *FARSHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const endpoint = "/api/fars/map"
	defer h.observe(endpoint, time.Now())

	state, year, err := parseMapParams(r)
	if err != nil {
		h.metrics.RecordAPIError("bad_request", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	outcome, err := h.mapService.RenderStateMap(ctx, &buf, state, year)
	switch {
	case errors.Is(err, models.ErrFileNotFound):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, models.ErrInvalidState):
		h.metrics.RecordAPIError("invalid_state", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error(ctx, "[API_GET_MAP_ERROR] Failed to render map", logging.Fields{
			"state": state,
			"year":  int(year),
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "failed to render state map", http.StatusInternalServerError)
		return
	}

	if outcome == models.OutcomeNoAccidents {
		h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(http.StatusNoContent))
		w.Header().Set("X-FARS-Outcome", outcome.String())
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body := buf.Bytes()
	etag := checksum.ETag(body)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(http.StatusNotModified))
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(http.StatusOK))
	w.Header().Set("Content-Type", h.mapContentType)
	w.Header().Set("ETag", etag)
	w.Header().Set("X-FARS-Outcome", outcome.String())
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// HealthCheck handles GET /health
func (h *FARSHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.repo != nil {
		if err := h.repo.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_DB] Database unhealthy", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// RequestID tags each request with an id that every log entry of the request carries
func (h *FARSHandler) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = fmt.Sprintf("%x-%d", time.Now().UnixNano(), h.requestSeq.Add(1))
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// RegisterRoutes registers all FARS API routes
func (h *FARSHandler) RegisterRoutes(router *mux.Router) {
	router.Use(h.RequestID)
	router.HandleFunc("/api/fars/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/fars/map", h.GetMap).Methods("GET")
	if h.repo != nil {
		router.HandleFunc("/api/fars/stored", h.GetStoredSummary).Methods("GET")
	}
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}

func (h *FARSHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendCacheableJSON writes v with an ETag and answers If-None-Match with 304
func (h *FARSHandler) sendCacheableJSON(w http.ResponseWriter, r *http.Request, endpoint string, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		h.metrics.RecordAPIError("encode_error", endpoint)
		h.sendError(w, r, endpoint, "failed to encode response", http.StatusInternalServerError)
		return
	}

	etag := checksum.ETag(body)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(http.StatusNotModified))
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(http.StatusOK))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// sendJSON sends a JSON response
func (h *FARSHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *FARSHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// parseYears accepts "years=2013,2014" and repeated "years=" parameters
func parseYears(values []string) ([]models.Year, error) {
	years, err := models.ParseYears(values...)
	if err != nil {
		return nil, err
	}
	if len(years) > maxYearsPerRequest {
		return nil, &models.ValidationError{
			Field:   "years",
			Value:   strconv.Itoa(len(years)),
			Message: fmt.Sprintf("at most %d years per request", maxYearsPerRequest),
		}
	}
	return years, nil
}

func parseMapParams(r *http.Request) (int, models.Year, error) {
	q := r.URL.Query()

	stateStr := strings.TrimSpace(q.Get("state"))
	state, err := strconv.ParseFloat(stateStr, 64)
	if err != nil {
		return 0, 0, &models.ValidationError{
			Field:   "state",
			Value:   stateStr,
			Message: "state is required and must be a number",
		}
	}

	yearStr := strings.TrimSpace(q.Get("year"))
	year, err := strconv.ParseFloat(yearStr, 64)
	if err != nil {
		return 0, 0, &models.ValidationError{
			Field:   "year",
			Value:   yearStr,
			Message: "year is required and must be a number",
		}
	}

	return models.NormalizeStateCode(state), models.NormalizeYear(year), nil
}
