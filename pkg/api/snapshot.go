package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/simulation"
)

type GraphSnapshotResponse struct {
	Nodes    []SnapshotNode   `json:"nodes"`
	Edges    []SnapshotEdge   `json:"edges"`
	Metadata SnapshotMetadata `json:"metadata"`
}

type SnapshotNode struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Namespace       string   `json:"namespace"`
	RiskLevel       string   `json:"riskLevel"`
	RiskReason      string   `json:"riskReason"`
	ReqRate         float64  `json:"reqRate"`
	ErrorRatePct    float64  `json:"errorRatePct"`
	LatencyP95Ms    float64  `json:"latencyP95Ms"`
	AvailabilityPct float64  `json:"availabilityPct"`
	PodCount        int      `json:"podCount"`
	PageRank        *float64 `json:"pageRank,omitempty"`
	Betweenness     *float64 `json:"betweenness,omitempty"`
	UpdatedAt       string   `json:"updatedAt"`
}

type SnapshotEdge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	ReqRate      float64 `json:"reqRate"`
	LatencyP95Ms float64 `json:"latencyP95Ms"`
}

type SnapshotMetadata struct {
	Stale                 bool   `json:"stale"`
	LastUpdatedSecondsAgo *int   `json:"lastUpdatedSecondsAgo"`
	WindowMinutes         int    `json:"windowMinutes"`
	NodeCount             int    `json:"nodeCount"`
	EdgeCount             int    `json:"edgeCount"`
	GeneratedAt           string `json:"generatedAt"`
}

// DependencyGraphHandler godoc
// @Summary Annotated dependency graph snapshot
// @Description Returns the current topology with live metrics, centrality scores, and per-node risk levels
// @Tags snapshot
// @Produce json
// @Param namespace query string false "Filter nodes by namespace"
// @Success 200 {object} GraphSnapshotResponse
// @Failure 503 {object} map[string]interface{}
// @Router /api/dependency-graph/snapshot [get]
func (h *Handler) DependencyGraphHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	namespace := r.URL.Query().Get("namespace")

	var wg sync.WaitGroup
	wg.Add(3)

	var snapshot *graph.MetricsSnapshotResponse
	var snapshotErr error
	var health *graph.HealthResponse
	var healthErr error
	var centrality *graph.CentralityScoresResponse
	var centralityErr error

	go func() {
		defer wg.Done()
		snapshot, snapshotErr = h.GraphClient.MetricsSnapshot(ctx)
	}()
	go func() {
		defer wg.Done()
		health, healthErr = h.GraphClient.Health(ctx)
	}()
	go func() {
		defer wg.Done()
		centrality, centralityErr = h.GraphClient.CentralityScores(ctx)
	}()
	wg.Wait()

	stale := true
	var lastUpdatedSecondsAgo *int
	windowMinutes := 5
	if healthErr == nil && health != nil {
		stale = health.Stale
		l := health.LastUpdatedSecondsAgo
		lastUpdatedSecondsAgo = &l
		windowMinutes = health.WindowMinutes
	}

	if snapshotErr != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Failed to fetch graph snapshot from graph provider",
			"nodes": []any{},
			"edges": []any{},
			"metadata": map[string]any{
				"stale":                 true,
				"lastUpdatedSecondsAgo": nil,
				"windowMinutes":         windowMinutes,
			},
		})
		return
	}

	centralityByName := make(map[string]graph.ServiceScore)
	if centralityErr == nil && centrality != nil {
		for _, s := range centrality.Scores {
			// Centrality keys may be canonical or bare names.
			_, name := simulation.SplitID(s.Service)
			centralityByName[name] = s
		}
	}

	namespaceByName := make(map[string]string, len(snapshot.Services))
	now := time.Now().UTC().Format(time.RFC3339)

	nodes := []SnapshotNode{}
	for _, svc := range snapshot.Services {
		ns := svc.Namespace
		if ns == "" {
			ns = "default"
		}
		namespaceByName[svc.Name] = ns

		if namespace != "" && ns != namespace {
			continue
		}

		riskLevel, riskReason := nodeRiskLevel(svc)

		node := SnapshotNode{
			ID:              simulation.CanonicalID(ns, svc.Name),
			Name:            svc.Name,
			Namespace:       ns,
			RiskLevel:       riskLevel,
			RiskReason:      riskReason,
			ReqRate:         svc.RPS,
			ErrorRatePct:    svc.ErrorRate * 100.0,
			LatencyP95Ms:    svc.P95,
			AvailabilityPct: svc.Availability.Value * 100.0,
			PodCount:        svc.PodCount.Value,
			UpdatedAt:       now,
		}
		if score, ok := centralityByName[svc.Name]; ok {
			pr := score.PageRank
			b := score.Betweenness
			node.PageRank = &pr
			node.Betweenness = &b
		}
		nodes = append(nodes, node)
	}

	edges := []SnapshotEdge{}
	for _, e := range snapshot.Edges {
		fromNs, ok := namespaceByName[e.From]
		if !ok {
			fromNs = "default"
		}
		toNs := e.Namespace
		if toNs == "" {
			if ns, ok := namespaceByName[e.To]; ok {
				toNs = ns
			} else {
				toNs = "default"
			}
		}

		source := simulation.CanonicalID(fromNs, e.From)
		target := simulation.CanonicalID(toNs, e.To)
		if namespace != "" && fromNs != namespace && toNs != namespace {
			continue
		}

		edges = append(edges, SnapshotEdge{
			ID:           fmt.Sprintf("%s->%s", source, target),
			Source:       source,
			Target:       target,
			ReqRate:      e.RPS,
			LatencyP95Ms: e.P95,
		})
	}

	respondJSON(w, http.StatusOK, GraphSnapshotResponse{
		Nodes: nodes,
		Edges: edges,
		Metadata: SnapshotMetadata{
			Stale:                 stale,
			LastUpdatedSecondsAgo: lastUpdatedSecondsAgo,
			WindowMinutes:         windowMinutes,
			NodeCount:             len(nodes),
			EdgeCount:             len(edges),
			GeneratedAt:           now,
		},
	})
}

// nodeRiskLevel grades a service's live health for the snapshot view. This is
// operational risk (is it unhealthy right now), distinct from the structural
// risk ranking in the analysis package.
func nodeRiskLevel(m graph.ServiceMetrics) (string, string) {
	availPct := m.Availability.Value * 100.0
	errPct := m.ErrorRate * 100.0

	if m.PodCount.Value == 0 && !m.PodCount.IsObject {
		return "CRITICAL", "No pods running"
	}

	// Availability from {low,high} objects is unreliable; skip the
	// availability- and latency-based grades and fall through to LOW.
	if !m.Availability.IsObject {
		switch {
		case availPct < 50:
			return "CRITICAL", fmt.Sprintf("Critical availability (%.1f%%)", availPct)
		case errPct > 5.0:
			return "HIGH", fmt.Sprintf("High error rate (%.2f%%)", errPct)
		case availPct < 95.0:
			return "HIGH", fmt.Sprintf("Low availability (%.1f%%)", availPct)
		case m.P95 > 1000:
			return "HIGH", fmt.Sprintf("P95 latency spike (%.0fms)", m.P95)
		case errPct > 1.0:
			return "MEDIUM", fmt.Sprintf("Elevated error rate (%.2f%%)", errPct)
		case availPct < 99.0:
			return "MEDIUM", fmt.Sprintf("Availability degraded (%.1f%%)", availPct)
		case m.P95 > 500:
			return "MEDIUM", fmt.Sprintf("Slow responses (%.0fms)", m.P95)
		}
	}

	return "LOW", "Operating normally"
}
