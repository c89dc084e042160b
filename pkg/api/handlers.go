package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"topology-impact-engine/pkg/analysis"
	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/config"
	"topology-impact-engine/pkg/simulation"
)

type Handler struct {
	Config            *config.Config
	GraphClient       *graph.Client
	SimulationService *simulation.Service
	StartTime         time.Time
}

func NewHandler(cfg *config.Config, graphClient *graph.Client, simService *simulation.Service) *Handler {
	return &Handler{
		Config:            cfg,
		GraphClient:       graphClient,
		SimulationService: simService,
		StartTime:         time.Now(),
	}
}

// HealthHandler godoc
// @Summary Service health
// @Description Reports engine health and the state of the graph provider connection
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	uptimeSeconds := float64(int(time.Since(h.StartTime).Seconds()*10)) / 10.0

	status := "ok"
	var graphAPI any

	if health, err := h.GraphClient.Health(r.Context()); err == nil {
		graphAPI = map[string]any{
			"connected":             true,
			"status":                health.Status,
			"stale":                 health.Stale,
			"lastUpdatedSecondsAgo": health.LastUpdatedSecondsAgo,
			"timeoutMs":             h.Config.GraphAPI.TimeoutMs,
		}
		if health.Stale {
			status = "degraded"
		}
	} else {
		status = "degraded"
		graphAPI = map[string]any{
			"connected": false,
			"error":     err.Error(),
			"timeoutMs": h.Config.GraphAPI.TimeoutMs,
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"provider": "graph-engine",
		"graphApi": graphAPI,
		"config": map[string]any{
			"maxTraversalDepth":    h.Config.Simulation.MaxTraversalDepth,
			"defaultLatencyMetric": h.Config.Simulation.DefaultLatencyMetric,
			"scalingModel":         h.Config.Simulation.ScalingModel,
		},
		"telemetry": map[string]any{
			"enabled":       h.Config.Telemetry.Enabled,
			"workerEnabled": h.Config.TelemetryWorker.Enabled,
		},
		"uptimeSeconds": uptimeSeconds,
	})
}

// ServicesHandler godoc
// @Summary List known services
// @Description Lists services known to the graph provider with freshness metadata
// @Tags services
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]string
// @Router /api/services [get]
func (h *Handler) ServicesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	type svcResult struct {
		data []graph.ServiceInfo
		err  error
	}
	type healthResult struct {
		data *graph.HealthResponse
		err  error
	}

	svcCh := make(chan svcResult, 1)
	healthCh := make(chan healthResult, 1)
	go func() {
		s, e := h.GraphClient.Services(ctx)
		svcCh <- svcResult{s, e}
	}()
	go func() {
		hr, e := h.GraphClient.Health(ctx)
		healthCh <- healthResult{hr, e}
	}()

	sRes := <-svcCh
	hRes := <-healthCh

	stale := true
	var lastUpdated *int
	windowMinutes := 5
	if hRes.err == nil {
		stale = hRes.data.Stale
		lastUpdated = &hRes.data.LastUpdatedSecondsAgo
		windowMinutes = hRes.data.WindowMinutes
	}

	if sRes.err != nil {
		slog.Error("failed to fetch services", "error", sRes.err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":                 "Failed to fetch services from graph provider",
			"services":              []any{},
			"count":                 0,
			"stale":                 true,
			"lastUpdatedSecondsAgo": nil,
			"windowMinutes":         windowMinutes,
		})
		return
	}

	type serviceItem struct {
		ServiceID    string  `json:"serviceId"`
		Name         string  `json:"name"`
		Namespace    string  `json:"namespace"`
		PodCount     int     `json:"podCount"`
		Availability float64 `json:"availability"`
	}

	services := make([]serviceItem, 0, len(sRes.data))
	for _, s := range sRes.data {
		ns := s.Namespace
		if ns == "" {
			ns = "default"
		}
		services = append(services, serviceItem{
			ServiceID:    simulation.CanonicalID(ns, s.Name),
			Name:         s.Name,
			Namespace:    ns,
			PodCount:     s.PodCount,
			Availability: s.Availability,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":                 len(services),
		"services":              services,
		"stale":                 stale,
		"lastUpdatedSecondsAgo": lastUpdated,
		"windowMinutes":         windowMinutes,
	})
}

// TopRiskHandler godoc
// @Summary Rank services by structural risk
// @Description Ranks services by centrality-derived risk of cascading failure
// @Tags analysis
// @Produce json
// @Param metric query string false "Centrality metric (pagerank or betweenness)" default(pagerank)
// @Param limit query int false "Number of services to return (1-20)" default(5)
// @Success 200 {object} analysis.RiskResult
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Failure 504 {object} map[string]string
// @Router /api/analysis/risk/top [get]
func (h *Handler) TopRiskHandler(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "pagerank"
	}
	if !slices.Contains(graph.AllowedCentralityMetrics, metric) {
		respondError(w, http.StatusBadRequest,
			"Invalid metric. Allowed: "+strings.Join(graph.AllowedCentralityMetrics, ", "))
		return
	}

	limit := 5
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 20 {
		limit = 20
	}

	result, err := analysis.TopRiskServices(r.Context(), h.GraphClient, metric, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SimulateFailureHandler godoc
// @Summary Simulate a service failure
// @Description Predicts blast radius, lost traffic, and critical paths if the target service fails
// @Tags simulation
// @Accept json
// @Produce json
// @Param request body simulation.FailureRequest true "Failure scenario"
// @Success 200 {object} simulation.FailureResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Failure 504 {object} map[string]string
// @Router /api/simulate/failure [post]
func (h *Handler) SimulateFailureHandler(w http.ResponseWriter, r *http.Request) {
	var req simulation.FailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.SimulationService.RunFailureSimulation(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SimulateScalingHandler godoc
// @Summary Simulate a replica count change
// @Description Projects latency impact on callers if the target service is scaled
// @Tags simulation
// @Accept json
// @Produce json
// @Param request body simulation.ScalingRequest true "Scaling scenario"
// @Success 200 {object} simulation.ScalingResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Failure 504 {object} map[string]string
// @Router /api/simulate/scaling [post]
func (h *Handler) SimulateScalingHandler(w http.ResponseWriter, r *http.Request) {
	var req simulation.ScalingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.SimulationService.RunScalingSimulation(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SimulateAddHandler godoc
// @Summary Simulate adding a new service
// @Description Checks cluster capacity and dependency risk for a proposed new service
// @Tags simulation
// @Accept json
// @Produce json
// @Param request body simulation.AddRequest true "New service scenario"
// @Success 200 {object} simulation.AddResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/simulate/add [post]
func (h *Handler) SimulateAddHandler(w http.ResponseWriter, r *http.Request) {
	var req simulation.AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.SimulationService.RunAddSimulation(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// writeDomainError maps typed domain errors to HTTP statuses. Unknown errors
// become opaque 500s so internals never leak to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	var simErr *simulation.Error
	if errors.As(err, &simErr) {
		switch simErr.Kind {
		case simulation.KindInvalidInput:
			respondError(w, http.StatusBadRequest, simErr.Message)
		case simulation.KindNotFound:
			respondError(w, http.StatusNotFound, simErr.Message)
		case simulation.KindSimulationTimeout:
			respondError(w, http.StatusGatewayTimeout, simErr.Message)
		default:
			slog.Error("simulation error", "error", err)
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	var graphErr *graph.Error
	if errors.As(err, &graphErr) {
		switch graphErr.Kind {
		case graph.ErrUnreachable:
			respondError(w, http.StatusServiceUnavailable, "Graph provider unavailable")
		case graph.ErrTimeout:
			respondError(w, http.StatusGatewayTimeout, "Graph provider timeout")
		case graph.ErrHTTP, graph.ErrDecode:
			respondError(w, http.StatusBadGateway, graphErr.Message)
		default:
			slog.Error("graph provider error", "error", err)
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	slog.Error("unhandled error", "error", err)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}
