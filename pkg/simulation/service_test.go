package simulation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/config"
)

type memorySink struct {
	mu      sync.Mutex
	records []DecisionRecord
	err     error
}

func (m *memorySink) LogDecision(_ context.Context, rec DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func TestServiceRunFailureSimulation(t *testing.T) {
	t.Parallel()

	t.Run("records decision on success", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})
		sink := &memorySink{}
		svc := NewService(testConfig(), client, sink)

		result, err := svc.RunFailureSimulation(context.Background(), FailureRequest{Name: "checkout"})
		require.NoError(t, err)
		require.NotNil(t, result)

		sink.mu.Lock()
		defer sink.mu.Unlock()
		require.Len(t, sink.records, 1)
		require.Equal(t, "failure", sink.records[0].Type)
		require.NotEmpty(t, sink.records[0].Timestamp)
	})

	t.Run("sink failure does not fail the simulation", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})
		sink := &memorySink{err: context.Canceled}
		svc := NewService(testConfig(), client, sink)

		_, err := svc.RunFailureSimulation(context.Background(), FailureRequest{Name: "checkout"})
		require.NoError(t, err)
	})

	t.Run("wall clock budget converts to simulation timeout", func(t *testing.T) {
		t.Parallel()

		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(slow.Close)

		cfg := testConfig()
		cfg.Simulation.TimeoutMs = 50
		client := graph.NewClient(config.GraphAPIConfig{BaseURL: slow.URL, TimeoutMs: 5000})
		svc := NewService(cfg, client, nil)

		_, err := svc.RunFailureSimulation(context.Background(), FailureRequest{Name: "checkout"})
		var simErr *Error
		require.ErrorAs(t, err, &simErr)
		require.Equal(t, KindSimulationTimeout, simErr.Kind)
	})

	t.Run("nil sink is fine", func(t *testing.T) {
		t.Parallel()

		client := newFakeProvider(t, fakeProvider{
			neighborhood: checkoutNeighborhood(),
			health:       freshHealth(),
		})
		svc := NewService(testConfig(), client, nil)

		_, err := svc.RunFailureSimulation(context.Background(), FailureRequest{Name: "checkout"})
		require.NoError(t, err)
	})
}

func TestServiceRunScalingSimulation(t *testing.T) {
	t.Parallel()

	client := newFakeProvider(t, fakeProvider{
		neighborhood: checkoutNeighborhood(),
		health:       freshHealth(),
	})
	sink := &memorySink{}
	svc := NewService(testConfig(), client, sink)

	result, err := svc.RunScalingSimulation(context.Background(), ScalingRequest{
		Name:        "checkout",
		CurrentPods: 2,
		NewPods:     4,
	})
	require.NoError(t, err)
	require.Equal(t, "up", result.ScalingDirection)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.records, 1)
	require.Equal(t, "scaling", sink.records[0].Type)
}
