package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	simulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impact_engine_simulations_total",
		Help: "Simulations run, by type and outcome.",
	}, []string{"type", "outcome"})

	simulationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "impact_engine_simulation_duration_seconds",
		Help:    "Wall-clock duration of simulations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impact_engine_provider_calls_total",
		Help: "Graph provider calls, by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
)

func ObserveSimulation(simType, outcome string, seconds float64) {
	simulationsTotal.WithLabelValues(simType, outcome).Inc()
	simulationDuration.WithLabelValues(simType).Observe(seconds)
}

func ObserveProviderCall(endpoint, outcome string) {
	providerCallsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
