package simulation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/config"
)

// resolveTargetKey normalizes a request's target reference to the canonical
// namespace:name key before anything touches the network.
func resolveTargetKey(serviceID, name, namespace string) (string, error) {
	if serviceID != "" {
		ns, n := SplitID(serviceID)
		if n == "" {
			return "", invalidInput("serviceId %q has no service name", serviceID)
		}
		return CanonicalID(ns, n), nil
	}
	if name == "" {
		return "", invalidInput("either serviceId or name is required")
	}
	return CanonicalID(namespace, name), nil
}

func validateDepth(depth, fallback int) (int, error) {
	if depth == 0 {
		depth = fallback
	}
	if depth < 1 || depth > 3 {
		return 0, invalidInput("maxDepth must be 1, 2, or 3; got %d", depth)
	}
	return depth, nil
}

// SimulateFailure answers "what happens if this service fails": direct caller
// and downstream traffic loss, services cut off from every entrypoint, and
// the highest-throughput paths that break.
func SimulateFailure(ctx context.Context, client *graph.Client, cfg *config.Config, req FailureRequest, tr Tracer) (*FailureResult, error) {
	stage := tr.Start(StageScenarioParse)
	targetKey, err := resolveTargetKey(req.ServiceID, req.Name, req.Namespace)
	if err != nil {
		stage.End()
		return nil, err
	}
	maxDepth, err := validateDepth(req.MaxDepth, cfg.Simulation.MaxTraversalDepth)
	if err != nil {
		stage.End()
		return nil, err
	}
	stage.Summarize("target", targetKey)
	stage.Summarize("maxDepth", maxDepth)
	stage.End()

	stage = tr.Start(StageFetchNeighborhood)
	neighborhood, err := client.Neighborhood(ctx, targetKey, maxDepth)
	if err != nil {
		stage.End()
		return nil, err
	}
	stage.Summarize("nodes", len(neighborhood.Nodes))
	stage.Summarize("edges", len(neighborhood.Edges))
	stage.End()

	stage = tr.Start(StageStalenessCheck)
	confidence, freshness := checkFreshness(ctx, client)
	if freshness != nil && freshness.Stale {
		stage.Warn("graph data is stale; confidence lowered")
	}
	stage.End()

	stage = tr.Start(StageBuildSnapshot)
	snapshot := BuildSnapshot(neighborhood)
	// Prefer the provider's resolved center when it exists in the snapshot.
	if _, ok := snapshot.Nodes[snapshot.TargetKey]; ok && snapshot.TargetKey != "" {
		targetKey = snapshot.TargetKey
	}
	targetNode, ok := snapshot.Nodes[targetKey]
	if !ok {
		stage.End()
		return nil, notFound("service not found in topology: %s", targetKey)
	}
	stage.Summarize("snapshotNodes", len(snapshot.Nodes))
	stage.End()
	target := refFor(targetNode, targetKey)

	stage = tr.Start(StagePathAnalysis)
	criticalPaths := TopPathsToTarget(snapshot, targetKey, maxDepth, cfg.Simulation.MaxPathsReturned)
	stage.Summarize("paths", len(criticalPaths))
	stage.End()

	stage = tr.Start(StageComputeImpact)
	callers := aggregateCallers(snapshot, targetKey)
	downstream := aggregateDownstream(snapshot, targetKey)

	entrypoints := pickEntrypoints(snapshot, targetKey)
	reachable := reachableFrom(snapshot, entrypoints, targetKey)
	lostByNode := boundaryTrafficLoss(snapshot, reachable, targetKey)

	unreachable := make([]UnreachableImpact, 0)
	for key, node := range snapshot.Nodes {
		if key == targetKey || reachable[key] {
			continue
		}
		ref := refFor(node, key)
		loss := lostByNode[key]
		unreachable = append(unreachable, UnreachableImpact{
			ServiceID:                ref.ServiceID,
			Name:                     ref.Name,
			Namespace:                ref.Namespace,
			LostTrafficRps:           loss.TotalRps,
			LostFromTargetRps:        loss.FromTargetRps,
			LostFromReachableCutsRps: loss.FromReachableCutsRps,
		})
	}
	sort.SliceStable(unreachable, func(i, j int) bool {
		if unreachable[i].LostTrafficRps != unreachable[j].LostTrafficRps {
			return unreachable[i].LostTrafficRps > unreachable[j].LostTrafficRps
		}
		return unreachable[i].ServiceID < unreachable[j].ServiceID
	})

	var totalLost float64
	for _, c := range callers {
		totalLost += c.LostTrafficRps
	}
	stage.Summarize("affectedCallers", len(callers))
	stage.Summarize("unreachable", len(unreachable))
	stage.Summarize("totalLostTrafficRps", totalLost)
	stage.End()

	result := &FailureResult{
		Target: target,
		Neighborhood: NeighborhoodMeta{
			Description:  "k-hop neighborhood subgraph around target (not full graph)",
			ServiceCount: len(snapshot.Nodes),
			EdgeCount:    len(snapshot.Edges),
			DepthUsed:    maxDepth,
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		},
		DataFreshness: freshness,
		Confidence:    confidence,
		Explanation: fmt.Sprintf("If %s fails, %d upstream caller(s) lose direct access, %d downstream service(s) lose traffic from this target, and %d service(s) may become unreachable within the %d-hop neighborhood.",
			target.Name, len(callers), len(downstream), len(unreachable), maxDepth),
		AffectedCallers:     callers,
		AffectedDownstream:  downstream,
		UnreachableServices: unreachable,
		CriticalPaths:       criticalPaths,
		TotalLostTrafficRps: totalLost,
	}
	if result.CriticalPaths == nil {
		result.CriticalPaths = []PathImpact{}
	}

	stage = tr.Start(StageRecommendations)
	result.Recommendations = FailureRecommendations(result)
	stage.Summarize("count", len(result.Recommendations))
	stage.End()

	result.Trace = tr.Result()
	return result, nil
}

// aggregateCallers groups the target's incoming edges by source: summed lost
// RPS, worst error rate. Self-loops are filtered from outputs.
func aggregateCallers(snapshot *GraphSnapshot, targetKey string) []CallerImpact {
	byID := make(map[string]*CallerImpact)
	for _, edge := range snapshot.IncomingEdges[targetKey] {
		if edge.Source == "" || edge.Source == targetKey {
			continue
		}
		imp, ok := byID[edge.Source]
		if !ok {
			ref := refFor(snapshot.Nodes[edge.Source], edge.Source)
			imp = &CallerImpact{ServiceID: ref.ServiceID, Name: ref.Name, Namespace: ref.Namespace}
			byID[edge.Source] = imp
		}
		imp.LostTrafficRps += edge.Rate
		imp.EdgeErrorRate = math.Max(imp.EdgeErrorRate, edge.ErrorRate)
	}

	out := make([]CallerImpact, 0, len(byID))
	for _, imp := range byID {
		out = append(out, *imp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LostTrafficRps != out[j].LostTrafficRps {
			return out[i].LostTrafficRps > out[j].LostTrafficRps
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out
}

func aggregateDownstream(snapshot *GraphSnapshot, targetKey string) []DownstreamImpact {
	byID := make(map[string]*DownstreamImpact)
	for _, edge := range snapshot.OutgoingEdges[targetKey] {
		if edge.Target == "" || edge.Target == targetKey {
			continue
		}
		imp, ok := byID[edge.Target]
		if !ok {
			ref := refFor(snapshot.Nodes[edge.Target], edge.Target)
			imp = &DownstreamImpact{ServiceID: ref.ServiceID, Name: ref.Name, Namespace: ref.Namespace}
			byID[edge.Target] = imp
		}
		imp.LostTrafficRps += edge.Rate
		imp.EdgeErrorRate = math.Max(imp.EdgeErrorRate, edge.ErrorRate)
	}

	out := make([]DownstreamImpact, 0, len(byID))
	for _, imp := range byID {
		out = append(out, *imp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LostTrafficRps != out[j].LostTrafficRps {
			return out[i].LostTrafficRps > out[j].LostTrafficRps
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out
}

// checkFreshness derives confidence from the provider's health report. A
// failed health probe is not an error; it just leaves freshness unknown.
func checkFreshness(ctx context.Context, client *graph.Client) (string, *DataFreshness) {
	health, err := client.Health(ctx)
	if err != nil || health == nil {
		return "high", nil
	}
	confidence := "high"
	if health.Stale {
		confidence = "low"
	}
	return confidence, &DataFreshness{
		Source:                "graph-engine",
		Stale:                 health.Stale,
		LastUpdatedSecondsAgo: health.LastUpdatedSecondsAgo,
		WindowMinutes:         health.WindowMinutes,
	}
}
