package simulation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"topology-impact-engine/pkg/clients/graph"
)

func TestPickEntrypoints(t *testing.T) {
	t.Parallel()

	t.Run("zero in-degree nodes", func(t *testing.T) {
		t.Parallel()

		snapshot := BuildSnapshot(checkoutNeighborhood())
		entrypoints := pickEntrypoints(snapshot, "default:checkout")

		require.Equal(t, []string{"default:gateway"}, entrypoints)
	})

	t.Run("falls back to all non-target nodes", func(t *testing.T) {
		t.Parallel()

		// Every node has an inbound edge, so no structural entrypoint exists.
		snapshot := BuildSnapshot(&graph.NeighborhoodResponse{
			Center: "default:b",
			Nodes: []graph.GraphNode{
				{Name: "a", Namespace: "default"},
				{Name: "b", Namespace: "default"},
			},
			Edges: []graph.GraphEdge{
				{From: "a", To: "b", Rate: 10},
				{From: "b", To: "a", Rate: 10},
			},
		})

		entrypoints := pickEntrypoints(snapshot, "default:b")
		require.Equal(t, []string{"default:a"}, entrypoints)
	})
}

func TestReachableFrom(t *testing.T) {
	t.Parallel()

	snapshot := BuildSnapshot(checkoutNeighborhood())

	t.Run("target blocks traversal", func(t *testing.T) {
		t.Parallel()

		reachable := reachableFrom(snapshot, []string{"default:gateway"}, "default:checkout")

		require.True(t, reachable["default:gateway"])
		require.False(t, reachable["default:checkout"])
		require.False(t, reachable["default:payments"])
		require.False(t, reachable["default:inventory"])
		require.False(t, reachable["default:notifications"])
	})

	t.Run("without block everything downstream is reachable", func(t *testing.T) {
		t.Parallel()

		reachable := reachableFrom(snapshot, []string{"default:gateway"}, "")
		require.Len(t, reachable, 5)
	})
}

func TestBoundaryTrafficLoss(t *testing.T) {
	t.Parallel()

	snapshot := BuildSnapshot(checkoutNeighborhood())
	reachable := reachableFrom(snapshot, []string{"default:gateway"}, "default:checkout")
	lost := boundaryTrafficLoss(snapshot, reachable, "default:checkout")

	// payments and inventory lose their inbound edges from the failed target.
	require.Equal(t, 80.0, lost["default:payments"].FromTargetRps)
	require.Equal(t, 80.0, lost["default:payments"].TotalRps)
	require.Equal(t, 40.0, lost["default:inventory"].FromTargetRps)

	// notifications' only caller is itself unreachable; its inbound edge is
	// neither from the target nor from a still-reachable node.
	require.Zero(t, lost["default:notifications"].TotalRps)
}
