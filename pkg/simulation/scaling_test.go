package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"topology-impact-engine/pkg/clients/graph"
)

func TestScalingProjections(t *testing.T) {
	t.Parallel()

	t.Run("bounded sqrt scale up", func(t *testing.T) {
		t.Parallel()
		// ratio 4, improvement 0.5: 100*(0.5+0.5*0.5) = 75
		got := boundedSqrtProjection(100, 1, 4, 0.5, 0.6)
		require.InDelta(t, 75.0, got, 0.001)
	})

	t.Run("bounded sqrt hits floor", func(t *testing.T) {
		t.Parallel()
		// alpha 0 and a huge ratio would project below the floor.
		got := boundedSqrtProjection(100, 1, 100, 0, 0.6)
		require.InDelta(t, 60.0, got, 0.001)
	})

	t.Run("bounded sqrt scale down degrades", func(t *testing.T) {
		t.Parallel()
		// ratio 0.25, improvement 2: 100*(0.5+0.5*2) = 150
		got := boundedSqrtProjection(100, 4, 1, 0.5, 0.6)
		require.InDelta(t, 150.0, got, 0.001)
	})

	t.Run("linear", func(t *testing.T) {
		t.Parallel()
		require.InDelta(t, 50.0, linearProjection(100, 2, 4), 0.001)
		require.InDelta(t, 200.0, linearProjection(100, 2, 1), 0.001)
	})
}

func TestWeightedMeanLatency(t *testing.T) {
	t.Parallel()

	edges := []*Edge{
		{Target: "default:a", Rate: 30, P95: f(100)},
		{Target: "default:b", Rate: 10, P95: f(20)},
	}

	t.Run("rate weighted", func(t *testing.T) {
		t.Parallel()
		got := weightedMeanLatency(edges, "p95", nil)
		require.NotNil(t, got)
		// (30*100 + 10*20) / 40 = 80
		require.InDelta(t, 80.0, *got, 0.001)
	})

	t.Run("adjusted substitution", func(t *testing.T) {
		t.Parallel()
		got := weightedMeanLatency(edges, "p95", map[string]float64{"default:a": 60})
		require.NotNil(t, got)
		// (30*60 + 10*20) / 40 = 50
		require.InDelta(t, 50.0, *got, 0.001)
	})

	t.Run("missing latency yields nil, never zero", func(t *testing.T) {
		t.Parallel()
		withGap := append(edges, &Edge{Target: "default:c", Rate: 5})
		require.Nil(t, weightedMeanLatency(withGap, "p95", nil))
	})

	t.Run("zero rate edges are ignored", func(t *testing.T) {
		t.Parallel()
		withIdle := append(edges, &Edge{Target: "default:c", Rate: 0})
		got := weightedMeanLatency(withIdle, "p95", nil)
		require.NotNil(t, got)
		require.InDelta(t, 80.0, *got, 0.001)
	})
}

func TestSimulateScaling(t *testing.T) {
	t.Parallel()

	t.Run("scale up checkout", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})

		result, err := SimulateScaling(context.Background(), client, testConfig(), ScalingRequest{
			ServiceID:   "default:checkout",
			CurrentPods: 2,
			NewPods:     4,
		}, NewTracer(false))
		require.NoError(t, err)

		require.Equal(t, "up", result.ScalingDirection)
		require.Equal(t, "p95", result.LatencyMetric)
		require.Equal(t, "bounded_sqrt", result.ScalingModel.Type)

		// Single incoming edge at 50ms p95; ratio 2, alpha 0.5:
		// 50*(0.5+0.5/sqrt(2)) = 42.678
		require.NotNil(t, result.LatencyEstimate.BaselineMs)
		require.InDelta(t, 50.0, *result.LatencyEstimate.BaselineMs, 0.001)
		require.InDelta(t, 42.678, *result.LatencyEstimate.ProjectedMs, 0.001)
		require.InDelta(t, -7.322, *result.LatencyEstimate.DeltaMs, 0.001)

		// gateway's only outgoing edge targets checkout, so its edge-level
		// delta equals the projection delta.
		require.NotEmpty(t, result.AffectedCallers.Items)
		gw := result.AffectedCallers.Items[0]
		require.Equal(t, "default:gateway", gw.ServiceID)
		require.Equal(t, 1, gw.HopDistance)
		require.InDelta(t, -7.322, *gw.DeltaMs, 0.001)
		require.NotNil(t, gw.EndToEndDeltaMs)
		require.InDelta(t, -7.322, *gw.EndToEndDeltaMs, 0.001)

		require.NotEmpty(t, result.AffectedPaths)
		require.False(t, result.AffectedPaths[0].IncompleteData)

		// Benefit under 10ms on a scale-up triggers the cost-efficiency flag.
		require.Len(t, result.Recommendations, 1)
		require.Equal(t, "cost-efficiency", result.Recommendations[0].Type)
	})

	t.Run("scale down projects degradation", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})

		result, err := SimulateScaling(context.Background(), client, testConfig(), ScalingRequest{
			Name:        "checkout",
			CurrentPods: 4,
			NewPods:     1,
		}, NewTracer(false))
		require.NoError(t, err)

		require.Equal(t, "down", result.ScalingDirection)
		require.Positive(t, *result.LatencyEstimate.DeltaMs)
		require.Empty(t, result.Recommendations)
	})

	t.Run("linear model override", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})

		result, err := SimulateScaling(context.Background(), client, testConfig(), ScalingRequest{
			Name:        "checkout",
			CurrentPods: 2,
			NewPods:     4,
			Model:       &ScalingModel{Type: "linear"},
		}, NewTracer(false))
		require.NoError(t, err)

		require.Equal(t, "linear", result.ScalingModel.Type)
		require.InDelta(t, 25.0, *result.LatencyEstimate.ProjectedMs, 0.001)
	})

	t.Run("missing latency data keeps estimate null", func(t *testing.T) {
		t.Parallel()

		neighborhood := &graph.NeighborhoodResponse{
			Center: "default:checkout",
			Nodes: []graph.GraphNode{
				{Name: "gateway", Namespace: "default"},
				{Name: "checkout", Namespace: "default"},
			},
			Edges: []graph.GraphEdge{
				// No percentiles at all on the only incoming edge.
				{From: "gateway", To: "checkout", Rate: 100},
			},
		}
		client := newFakeProvider(t, fakeProvider{neighborhood: neighborhood, health: freshHealth()})

		result, err := SimulateScaling(context.Background(), client, testConfig(), ScalingRequest{
			Name:        "checkout",
			CurrentPods: 1,
			NewPods:     2,
		}, NewTracer(false))
		require.NoError(t, err)

		require.Nil(t, result.LatencyEstimate.BaselineMs)
		require.Nil(t, result.LatencyEstimate.ProjectedMs)
		require.Nil(t, result.LatencyEstimate.DeltaMs)
		require.NotEmpty(t, result.Warnings)
		require.True(t, result.AffectedPaths[0].IncompleteData)

		// Unknown benefit on a scale-up still flags cost-efficiency.
		require.Len(t, result.Recommendations, 1)
		require.Equal(t, "cost-efficiency", result.Recommendations[0].Type)
	})

	t.Run("validation errors", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{neighborhood: checkoutNeighborhood()})
		cases := []struct {
			name string
			req  ScalingRequest
		}{
			{"zero current pods", ScalingRequest{Name: "checkout", CurrentPods: 0, NewPods: 2}},
			{"zero new pods", ScalingRequest{Name: "checkout", CurrentPods: 2, NewPods: 0}},
			{"bad metric", ScalingRequest{Name: "checkout", CurrentPods: 1, NewPods: 2, LatencyMetric: "p42"}},
			{"bad model", ScalingRequest{Name: "checkout", CurrentPods: 1, NewPods: 2, Model: &ScalingModel{Type: "quadratic"}}},
			{"bad alpha", ScalingRequest{Name: "checkout", CurrentPods: 1, NewPods: 2, Model: &ScalingModel{Type: "bounded_sqrt", Alpha: f(1.5)}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				_, err := SimulateScaling(context.Background(), client, testConfig(), tc.req, NewTracer(false))
				var simErr *Error
				require.ErrorAs(t, err, &simErr)
				require.Equal(t, KindInvalidInput, simErr.Kind)
			})
		}
	})
}
