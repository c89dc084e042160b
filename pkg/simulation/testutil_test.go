package simulation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Simulation: config.SimulationConfig{
			DefaultLatencyMetric: "p95",
			MaxTraversalDepth:    2,
			ScalingModel:         "bounded_sqrt",
			ScalingAlpha:         0.5,
			MinLatencyFactor:     0.6,
			TimeoutMs:            8000,
			MaxPathsReturned:     10,
		},
	}
}

func f(v float64) *float64 { return &v }

type fakeProvider struct {
	neighborhood *graph.NeighborhoodResponse
	health       *graph.HealthResponse
	services     any
}

// newFakeProvider serves the handful of provider endpoints the simulators
// touch. Unconfigured endpoints return 404.
func newFakeProvider(t *testing.T, p fakeProvider) *graph.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/neighborhood"):
			if p.neighborhood == nil {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(p.neighborhood)
		case r.URL.Path == "/graph/health":
			if p.health == nil {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(p.health)
		case r.URL.Path == "/services":
			if p.services == nil {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(p.services)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return graph.NewClient(config.GraphAPIConfig{BaseURL: srv.URL, TimeoutMs: 2000})
}

// checkoutNeighborhood is a small shop topology centered on checkout:
//
//	gateway -> checkout -> payments -> notifications
//	                    -> inventory
func checkoutNeighborhood() *graph.NeighborhoodResponse {
	return &graph.NeighborhoodResponse{
		Center: "default:checkout",
		K:      2,
		Nodes: []graph.GraphNode{
			{Name: "gateway", Namespace: "default", PodCount: 2, Availability: 1},
			{Name: "checkout", Namespace: "default", PodCount: 2, Availability: 0.99},
			{Name: "payments", Namespace: "default", PodCount: 1, Availability: 0.98},
			{Name: "inventory", Namespace: "default", PodCount: 1, Availability: 1},
			{Name: "notifications", Namespace: "default", PodCount: 1, Availability: 1},
		},
		Edges: []graph.GraphEdge{
			{From: "gateway", To: "checkout", Rate: 120, ErrorRate: 0.01, P50: f(20), P95: f(50), P99: f(90)},
			{From: "checkout", To: "payments", Rate: 80, ErrorRate: 0.02, P50: f(60), P95: f(120), P99: f(200)},
			{From: "checkout", To: "inventory", Rate: 40, ErrorRate: 0, P50: f(10), P95: f(30), P99: f(60)},
			{From: "payments", To: "notifications", Rate: 10, ErrorRate: 0, P50: f(5), P95: f(20), P99: f(40)},
		},
	}
}

func freshHealth() *graph.HealthResponse {
	return &graph.HealthResponse{
		Status:                "ok",
		LastUpdatedSecondsAgo: 10,
		WindowMinutes:         5,
		Stale:                 false,
	}
}

func staleHealth() *graph.HealthResponse {
	return &graph.HealthResponse{
		Status:                "ok",
		LastUpdatedSecondsAgo: 900,
		WindowMinutes:         5,
		Stale:                 true,
	}
}
