package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"topology-impact-engine/pkg/clients/telemetry"
)

type TelemetryHandler struct {
	Client *telemetry.Client
}

// MaxTimeRange bounds telemetry queries so a single request cannot scan
// unbounded history.
const MaxTimeRange = 7 * 24 * time.Hour

func (h *TelemetryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/service", h.GetServiceMetrics)
	r.Get("/edges", h.GetEdgeMetrics)
	return r
}

type timeRange struct {
	from string
	to   string
	step int
}

// parseTimeRange validates from/to/step query params shared by both
// telemetry endpoints. A non-nil error message means the request was already
// answered.
func parseTimeRange(w http.ResponseWriter, r *http.Request) (timeRange, bool) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	if fromStr == "" || toStr == "" {
		respondError(w, http.StatusBadRequest, "Missing required parameters: from, to")
		return timeRange{}, false
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid timestamp format")
		return timeRange{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid timestamp format")
		return timeRange{}, false
	}
	if to.Sub(from) > MaxTimeRange {
		respondError(w, http.StatusBadRequest, "Time range exceeds maximum of 7 days")
		return timeRange{}, false
	}

	step := 60
	if s := r.URL.Query().Get("step"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			step = v
		}
	}
	return timeRange{from: fromStr, to: toStr, step: step}, true
}

// GetServiceMetrics godoc
// @Summary Service telemetry history
// @Description Fetches aggregated metrics for a service (or all services) over a time range
// @Tags telemetry
// @Produce json
// @Param service query string false "Service name"
// @Param from query string true "Start timestamp (ISO 8601)"
// @Param to query string true "End timestamp (ISO 8601)"
// @Param step query int false "Step size in seconds" default(60)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/telemetry/service [get]
func (h *TelemetryHandler) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if enabled, reason := h.Client.CheckStatus(); !enabled {
		respondError(w, http.StatusServiceUnavailable, reason)
		return
	}

	tr, ok := parseTimeRange(w, r)
	if !ok {
		return
	}
	service := r.URL.Query().Get("service")

	points, err := h.Client.GetServiceMetrics(r.Context(), service, tr.from, tr.to, tr.step)
	if err != nil {
		slog.Error("service telemetry query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if points == nil {
		points = []telemetry.ServiceMetric{}
	}

	resp := map[string]any{
		"service":    "all",
		"from":       tr.from,
		"to":         tr.to,
		"step":       tr.step,
		"datapoints": points,
	}
	if service != "" {
		resp["service"] = service
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetEdgeMetrics godoc
// @Summary Edge telemetry history
// @Description Fetches aggregated metrics for service-to-service edges over a time range
// @Tags telemetry
// @Produce json
// @Param fromService query string false "Source service name"
// @Param toService query string false "Target service name"
// @Param from query string true "Start timestamp (ISO 8601)"
// @Param to query string true "End timestamp (ISO 8601)"
// @Param step query int false "Step size in seconds" default(60)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/telemetry/edges [get]
func (h *TelemetryHandler) GetEdgeMetrics(w http.ResponseWriter, r *http.Request) {
	if enabled, reason := h.Client.CheckStatus(); !enabled {
		respondError(w, http.StatusServiceUnavailable, reason)
		return
	}

	tr, ok := parseTimeRange(w, r)
	if !ok {
		return
	}
	fromSvc := r.URL.Query().Get("fromService")
	toSvc := r.URL.Query().Get("toService")

	points, err := h.Client.GetEdgeMetrics(r.Context(), fromSvc, toSvc, tr.from, tr.to, tr.step)
	if err != nil {
		slog.Error("edge telemetry query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if points == nil {
		points = []telemetry.EdgeMetric{}
	}

	resp := map[string]any{
		"from":       tr.from,
		"to":         tr.to,
		"step":       tr.step,
		"datapoints": points,
	}
	if fromSvc != "" {
		resp["fromService"] = fromSvc
	}
	if toSvc != "" {
		resp["toService"] = toSvc
	}
	respondJSON(w, http.StatusOK, resp)
}
