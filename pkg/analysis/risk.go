package analysis

import (
	"context"
	"fmt"

	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/simulation"
)

// Rank-percentile thresholds: top 20% of the returned ranking is high risk,
// top 50% medium, the rest low. Percentiles are computed against the
// returned limit, not the full service population.
const (
	riskHighPercentile   = 0.2
	riskMediumPercentile = 0.5
)

type RiskResult struct {
	Metric        string                    `json:"metric"`
	Services      []RiskService             `json:"services"`
	DataFreshness *simulation.DataFreshness `json:"dataFreshness"`
	Confidence    string                    `json:"confidence"`
}

type RiskService struct {
	ServiceID       string  `json:"serviceId"`
	Name            string  `json:"name"`
	Namespace       string  `json:"namespace"`
	CentralityScore float64 `json:"centralityScore"`
	RiskLevel       string  `json:"riskLevel"`
	Explanation     string  `json:"explanation"`
}

// TopRiskServices ranks services by structural risk from the provider's
// centrality feed.
func TopRiskServices(ctx context.Context, client *graph.Client, metric string, limit int) (*RiskResult, error) {
	centrality, err := client.CentralityTop(ctx, metric, limit)
	if err != nil {
		return nil, err
	}

	confidence := "unknown"
	var freshness *simulation.DataFreshness
	if health, herr := client.Health(ctx); herr == nil && health != nil {
		confidence = "high"
		if health.Stale {
			confidence = "low"
		}
		freshness = &simulation.DataFreshness{
			Source:                "graph-engine",
			Stale:                 health.Stale,
			LastUpdatedSecondsAgo: health.LastUpdatedSecondsAgo,
			WindowMinutes:         health.WindowMinutes,
		}
	}

	top := centrality.Top
	total := len(top)

	services := make([]RiskService, 0, total)
	for rank, entry := range top {
		level := riskLevel(entry.Value, rank, total)
		ns, name := simulation.SplitID(entry.Service)

		services = append(services, RiskService{
			ServiceID:       simulation.CanonicalID(ns, name),
			Name:            name,
			Namespace:       ns,
			CentralityScore: entry.Value,
			RiskLevel:       level,
			Explanation:     explain(name, metric, entry.Value, level),
		})
	}

	return &RiskResult{
		Metric:        metric,
		Services:      services,
		DataFreshness: freshness,
		Confidence:    confidence,
	}, nil
}

func riskLevel(score float64, rank, total int) string {
	if total == 0 {
		return "low"
	}
	percentile := float64(rank) / float64(total)
	switch {
	case score > 0 && percentile < riskHighPercentile:
		return "high"
	case score > 0 && percentile < riskMediumPercentile:
		return "medium"
	default:
		return "low"
	}
}

func explain(name, metric string, score float64, level string) string {
	metricLabel := "betweenness centrality"
	if metric == "pagerank" {
		metricLabel = "PageRank"
	}
	value := fmt.Sprintf("%.4f", score)

	switch level {
	case "high":
		return fmt.Sprintf("%s has high %s (%s), indicating it is a critical hub. Failure could cascade widely.", name, metricLabel, value)
	case "medium":
		return fmt.Sprintf("%s has moderate %s (%s). Monitor for dependencies.", name, metricLabel, value)
	default:
		return fmt.Sprintf("%s has low %s (%s). Lower risk of cascade.", name, metricLabel, value)
	}
}
