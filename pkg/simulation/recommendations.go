package simulation

import (
	"fmt"
	"math"
	"strings"
)

// FailureRecommendations maps a failure result to a prioritized action list.
// Pure policy over the synthesized result; it never reads the topology.
// Conditions are evaluated in a fixed order so output ordering is stable.
func FailureRecommendations(result *FailureResult) []Recommendation {
	recs := []Recommendation{}

	targetName := result.Target.Name
	if targetName == "" {
		targetName = "unknown"
	}

	if result.Confidence == "low" {
		recs = append(recs, Recommendation{
			Type:     "data-quality",
			Priority: "high",
			Target:   "graph-data",
			Reason:   "Graph data is stale (>5 minutes old)",
			Action:   "Verify graph-engine is syncing properly before acting on predictions",
		})
	}

	if result.TotalLostTrafficRps >= TrafficCritical {
		recs = append(recs, Recommendation{
			Type:     "circuit-breaker",
			Priority: "critical",
			Target:   targetName,
			Reason:   fmt.Sprintf("Failure would cause %.1f RPS total traffic loss", result.TotalLostTrafficRps),
			Action:   fmt.Sprintf("Implement circuit breaker with fallback for all callers of %s", targetName),
		})
	}

	if len(result.AffectedCallers) >= 3 {
		recs = append(recs, Recommendation{
			Type:     "redundancy",
			Priority: "high",
			Target:   targetName,
			Reason:   fmt.Sprintf("%d upstream services depend on %s", len(result.AffectedCallers), targetName),
			Action:   fmt.Sprintf("Deploy %s across multiple availability zones", targetName),
		})
	}

	for _, caller := range result.AffectedCallers {
		if caller.LostTrafficRps < TrafficHigh {
			continue
		}
		callerName := caller.Name
		if callerName == "" {
			callerName = caller.ServiceID
		}
		recs = append(recs, Recommendation{
			Type:     "circuit-breaker",
			Priority: "high",
			Target:   callerName,
			Reason:   fmt.Sprintf("%s would lose %.1f RPS", callerName, caller.LostTrafficRps),
			Action:   fmt.Sprintf("Add circuit breaker in %s when calling %s", callerName, targetName),
		})
	}

	if len(result.UnreachableServices) > 0 {
		var unreachableLoss float64
		for _, s := range result.UnreachableServices {
			unreachableLoss += s.LostTrafficRps
		}
		if len(result.UnreachableServices) >= 2 || unreachableLoss >= TrafficMedium {
			names := make([]string, 0, 3)
			for _, s := range result.UnreachableServices {
				if len(names) == 3 {
					break
				}
				names = append(names, s.Name)
			}
			recs = append(recs, Recommendation{
				Type:     "topology-review",
				Priority: "medium",
				Target:   targetName,
				Reason:   fmt.Sprintf("%d service(s) become unreachable (cascade risk)", len(result.UnreachableServices)),
				Action:   fmt.Sprintf("Review dependency graph; consider alternative paths for: %s", strings.Join(names, ", ")),
			})
		}
	}

	if len(result.AffectedDownstream) > 0 {
		var downstreamLoss float64
		for _, s := range result.AffectedDownstream {
			downstreamLoss += s.LostTrafficRps
		}
		if downstreamLoss >= TrafficMedium {
			recs = append(recs, Recommendation{
				Type:     "graceful-degradation",
				Priority: "medium",
				Target:   targetName,
				Reason:   fmt.Sprintf("Downstream services lose %.1f RPS from %s", downstreamLoss, targetName),
				Action:   fmt.Sprintf("Implement graceful degradation in %s to reduce downstream blast radius", targetName),
			})
		}
	}

	onlyDataQuality := len(recs) == 1 && recs[0].Type == "data-quality"
	if len(recs) == 0 || onlyDataQuality {
		recs = append(recs, Recommendation{
			Type:     "monitoring",
			Priority: "low",
			Target:   targetName,
			Reason:   "Low predicted impact, but failures can still occur",
			Action:   fmt.Sprintf("Ensure alerting is configured for %s availability", targetName),
		})
	}

	return recs
}

// ScalingRecommendations flags scale-ups whose projected latency benefit is
// marginal or unknown.
func ScalingRecommendations(result *ScalingResult) []Recommendation {
	recs := []Recommendation{}

	if result.ScalingDirection != "up" {
		return recs
	}

	smallBenefit := true
	if result.LatencyEstimate.DeltaMs != nil {
		smallBenefit = math.Abs(*result.LatencyEstimate.DeltaMs) < ScalingBenefitFloorMs
	}

	if smallBenefit {
		recs = append(recs, Recommendation{
			Type:     "cost-efficiency",
			Priority: "medium",
			Target:   result.Target.Name,
			Reason:   fmt.Sprintf("Scaling from %d to %d shows minimal latency benefit", result.CurrentPods, result.NewPods),
			Action:   fmt.Sprintf("Review if additional pods for %s are cost-effective; bottleneck may be elsewhere", result.Target.Name),
		})
	}
	return recs
}
