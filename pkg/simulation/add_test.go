package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"topology-impact-engine/pkg/clients/graph"
)

func placementServices() any {
	return map[string]any{
		"services": []graph.ServiceInfo{
			{
				Name:      "checkout",
				Namespace: "default",
				PodCount:  2,
				Placement: graph.ServicePlacement{
					Nodes: []graph.NodePlacement{
						{
							Node: "node-a",
							Resources: graph.NodeResources{
								CPU: graph.CPUResources{Cores: 4, UsagePercent: 50},
								RAM: graph.RAMResources{TotalMB: 8192, UsedMB: 4096},
							},
						},
						{
							Node: "node-b",
							Resources: graph.NodeResources{
								CPU: graph.CPUResources{Cores: 2, UsagePercent: 90},
								RAM: graph.RAMResources{TotalMB: 2048, UsedMB: 1900},
							},
						},
					},
				},
			},
			{
				// Same node seen through another service; counted once.
				Name:      "payments",
				Namespace: "default",
				PodCount:  1,
				Placement: graph.ServicePlacement{
					Nodes: []graph.NodePlacement{
						{
							Node: "node-a",
							Resources: graph.NodeResources{
								CPU: graph.CPUResources{Cores: 4, UsagePercent: 50},
								RAM: graph.RAMResources{TotalMB: 8192, UsedMB: 4096},
							},
						},
					},
				},
			},
		},
	}
}

func TestSimulateAdd(t *testing.T) {
	t.Parallel()

	t.Run("placement fits", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{services: placementServices()})

		result, err := SimulateAdd(context.Background(), client, AddRequest{
			ServiceName: "recommender",
			CPURequest:  0.5,
			RAMRequest:  512,
			Replicas:    3,
		}, NewTracer(false))
		require.NoError(t, err)

		require.True(t, result.Success)
		// node-a: 2.0 CPU free -> 4 pods by CPU, 4096MB free -> 8 by RAM.
		// node-b: 0.2 CPU free -> 0 pods.
		require.Equal(t, 4, result.TotalCapacityPods)
		require.Len(t, result.SuitableNodes, 1)
		require.Equal(t, "node-a", result.SuitableNodes[0].Node)
		require.Equal(t, 4, result.SuitableNodes[0].MaxPods)
		require.Equal(t, "low", result.RiskAnalysis.DependencyRisk)
		require.Equal(t, "monitoring", result.Recommendations[0].Type)
	})

	t.Run("insufficient capacity", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{services: placementServices()})

		result, err := SimulateAdd(context.Background(), client, AddRequest{
			ServiceName: "heavyweight",
			CPURequest:  1.0,
			RAMRequest:  1024,
			Replicas:    5,
		}, NewTracer(false))
		require.NoError(t, err)

		require.False(t, result.Success)
		require.Equal(t, 2, result.TotalCapacityPods)
		require.Equal(t, "capacity", result.Recommendations[0].Type)
		require.Equal(t, "high", result.Recommendations[0].Priority)
	})

	t.Run("dependency risk scales with count", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{services: placementServices()})

		result, err := SimulateAdd(context.Background(), client, AddRequest{
			ServiceName: "aggregator",
			CPURequest:  0.1,
			RAMRequest:  128,
			Replicas:    1,
			Dependencies: []DependencyRef{
				{ServiceID: "default:checkout"},
				{ServiceID: "default:payments"},
				{ServiceID: "default:inventory"},
			},
		}, NewTracer(false))
		require.NoError(t, err)

		require.Equal(t, "high", result.RiskAnalysis.DependencyRisk)
		require.Equal(t, "topology-review", result.Recommendations[0].Type)
	})

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{services: placementServices()})

		result, err := SimulateAdd(context.Background(), client, AddRequest{}, NewTracer(false))
		require.NoError(t, err)
		require.Equal(t, "new-service", result.TargetServiceName)
		require.True(t, result.Success)
	})

	t.Run("no cluster state", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{services: map[string]any{"services": []any{}}})

		_, err := SimulateAdd(context.Background(), client, AddRequest{ServiceName: "x"}, NewTracer(false))
		var simErr *Error
		require.ErrorAs(t, err, &simErr)
		require.Equal(t, KindNotFound, simErr.Kind)
	})
}
