package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulateFailure(t *testing.T) {
	t.Parallel()

	t.Run("checkout failure impact", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})

		result, err := SimulateFailure(context.Background(), client, testConfig(),
			FailureRequest{ServiceID: "default:checkout"}, NewTracer(false))
		require.NoError(t, err)

		require.Equal(t, "default:checkout", result.Target.ServiceID)
		require.Equal(t, "checkout", result.Target.Name)
		require.Equal(t, "high", result.Confidence)
		require.NotNil(t, result.DataFreshness)
		require.False(t, result.DataFreshness.Stale)

		require.Len(t, result.AffectedCallers, 1)
		require.Equal(t, "default:gateway", result.AffectedCallers[0].ServiceID)
		require.Equal(t, 120.0, result.AffectedCallers[0].LostTrafficRps)

		require.Len(t, result.AffectedDownstream, 2)
		require.Equal(t, "default:payments", result.AffectedDownstream[0].ServiceID)
		require.Equal(t, 80.0, result.AffectedDownstream[0].LostTrafficRps)
		require.Equal(t, "default:inventory", result.AffectedDownstream[1].ServiceID)

		// Everything behind checkout is cut off, ordered by lost traffic.
		require.Len(t, result.UnreachableServices, 3)
		require.Equal(t, "default:payments", result.UnreachableServices[0].ServiceID)
		require.Equal(t, 80.0, result.UnreachableServices[0].LostFromTargetRps)
		require.Equal(t, "default:inventory", result.UnreachableServices[1].ServiceID)
		require.Equal(t, "default:notifications", result.UnreachableServices[2].ServiceID)
		require.Zero(t, result.UnreachableServices[2].LostTrafficRps)

		require.Equal(t, 120.0, result.TotalLostTrafficRps)
		require.Len(t, result.CriticalPaths, 1)
		require.Equal(t, 2, result.Neighborhood.DepthUsed)
		require.NotEmpty(t, result.Recommendations)
		require.Nil(t, result.Trace)
	})

	t.Run("stale data lowers confidence", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       staleHealth(),
		})

		result, err := SimulateFailure(context.Background(), client, testConfig(),
			FailureRequest{Name: "checkout"}, NewTracer(false))
		require.NoError(t, err)

		require.Equal(t, "low", result.Confidence)
		require.True(t, result.DataFreshness.Stale)
		require.Equal(t, "data-quality", result.Recommendations[0].Type)
	})

	t.Run("health probe failure leaves freshness unknown", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{neighborhood: checkoutNeighborhood()})

		result, err := SimulateFailure(context.Background(), client, testConfig(),
			FailureRequest{Name: "checkout"}, NewTracer(false))
		require.NoError(t, err)

		require.Equal(t, "high", result.Confidence)
		require.Nil(t, result.DataFreshness)
	})

	t.Run("trace records pipeline stages", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})

		result, err := SimulateFailure(context.Background(), client, testConfig(),
			FailureRequest{ServiceID: "default:checkout", Trace: true}, NewTracer(true))
		require.NoError(t, err)

		require.NotNil(t, result.Trace)
		names := make([]string, 0, len(result.Trace.Stages))
		for _, s := range result.Trace.Stages {
			names = append(names, s.Name)
		}
		require.Equal(t, []string{
			StageScenarioParse,
			StageFetchNeighborhood,
			StageStalenessCheck,
			StageBuildSnapshot,
			StagePathAnalysis,
			StageComputeImpact,
			StageRecommendations,
		}, names)
	})

	t.Run("validation errors", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{neighborhood: checkoutNeighborhood()})

		t.Run("missing target", func(t *testing.T) {
			t.Parallel()
			_, err := SimulateFailure(context.Background(), client, testConfig(),
				FailureRequest{}, NewTracer(false))
			var simErr *Error
			require.ErrorAs(t, err, &simErr)
			require.Equal(t, KindInvalidInput, simErr.Kind)
		})

		t.Run("depth out of range", func(t *testing.T) {
			t.Parallel()
			_, err := SimulateFailure(context.Background(), client, testConfig(),
				FailureRequest{Name: "checkout", MaxDepth: 5}, NewTracer(false))
			var simErr *Error
			require.ErrorAs(t, err, &simErr)
			require.Equal(t, KindInvalidInput, simErr.Kind)
		})
	})

	t.Run("unknown service is not found", func(t *testing.T) {
		t.Parallel()

		neighborhood := checkoutNeighborhood()
		neighborhood.Center = "default:ghost"
		client := newFakeProvider(t, fakeProvider{neighborhood: neighborhood})

		_, err := SimulateFailure(context.Background(), client, testConfig(),
			FailureRequest{Name: "ghost"}, NewTracer(false))
		var simErr *Error
		require.ErrorAs(t, err, &simErr)
		require.Equal(t, KindNotFound, simErr.Kind)
	})
}

func TestResolveTargetKey(t *testing.T) {
	t.Parallel()

	t.Run("serviceId wins", func(t *testing.T) {
		t.Parallel()
		key, err := resolveTargetKey("shop:checkout", "other", "ns")
		require.NoError(t, err)
		require.Equal(t, "shop:checkout", key)
	})

	t.Run("name plus namespace", func(t *testing.T) {
		t.Parallel()
		key, err := resolveTargetKey("", "checkout", "shop")
		require.NoError(t, err)
		require.Equal(t, "shop:checkout", key)
	})

	t.Run("bare name defaults namespace", func(t *testing.T) {
		t.Parallel()
		key, err := resolveTargetKey("", "checkout", "")
		require.NoError(t, err)
		require.Equal(t, "default:checkout", key)
	})

	t.Run("nothing given", func(t *testing.T) {
		t.Parallel()
		_, err := resolveTargetKey("", "", "")
		require.Error(t, err)
		var simErr *Error
		require.True(t, errors.As(err, &simErr))
		require.Equal(t, KindInvalidInput, simErr.Kind)
	})
}
