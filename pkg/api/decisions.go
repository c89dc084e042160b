package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"topology-impact-engine/pkg/common"
	"topology-impact-engine/pkg/simulation"
	"topology-impact-engine/pkg/storage"
)

type DecisionsHandler struct {
	Store *storage.DecisionStore
}

func (h *DecisionsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/decisions/log", h.LogDecision)
	r.Get("/decisions/history", h.GetHistory)
}

var validDecisionTypes = map[string]bool{
	"failure": true,
	"scaling": true,
	"add":     true,
	"risk":    true,
}

type logDecisionInput struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Scenario  any    `json:"scenario"`
	Result    any    `json:"result"`
}

// LogDecision godoc
// @Summary Log a decision
// @Description Records an operator decision tied to a simulation outcome
// @Tags decisions
// @Accept json
// @Produce json
// @Param request body logDecisionInput true "Decision details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/decisions/log [post]
func (h *DecisionsHandler) LogDecision(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "Decision store not available. Check SQLite configuration.")
		return
	}

	var input logDecisionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if input.Timestamp == "" || input.Type == "" || input.Scenario == nil || input.Result == nil {
		respondError(w, http.StatusBadRequest, "Missing required fields: timestamp, type, scenario, result")
		return
	}
	if _, err := time.Parse(time.RFC3339, input.Timestamp); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid timestamp format. Use ISO 8601 (e.g., 2026-01-04T10:00:00Z)")
		return
	}
	if !validDecisionTypes[input.Type] {
		respondError(w, http.StatusBadRequest, "Invalid type. Must be one of: failure, scaling, add, risk")
		return
	}

	row, err := h.Store.Append(r.Context(), simulation.DecisionRecord{
		Timestamp:     input.Timestamp,
		Type:          input.Type,
		Scenario:      input.Scenario,
		Result:        input.Result,
		CorrelationID: common.CorrelationID(r.Context()),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":        row.ID,
		"timestamp": row.Timestamp,
	})
}

// GetHistory godoc
// @Summary Decision history
// @Description Retrieves logged decisions with pagination
// @Tags decisions
// @Produce json
// @Param limit query int false "Limit number of records" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Param type query string false "Filter by decision type"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]string
// @Router /api/decisions/history [get]
func (h *DecisionsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "Decision store not available. Check SQLite configuration.")
		return
	}

	opts := storage.HistoryOptions{Type: r.URL.Query().Get("type")}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			opts.Limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil {
			opts.Offset = v
		}
	}

	records, err := h.Store.History(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if records == nil {
		records = []storage.DecisionRow{}
	}

	total, err := h.Store.Count(r.Context(), opts.Type)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"decisions": records,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}
