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

// SimulateScaling projects the target's incoming-edge latency under a pod
// count change and propagates the adjustment upstream through rate-weighted
// means and end-to-end path sums.
func SimulateScaling(ctx context.Context, client *graph.Client, cfg *config.Config, req ScalingRequest, tr Tracer) (*ScalingResult, error) {
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

	latencyMetric := req.LatencyMetric
	if latencyMetric == "" {
		latencyMetric = cfg.Simulation.DefaultLatencyMetric
	}
	if latencyMetric != "p50" && latencyMetric != "p95" && latencyMetric != "p99" {
		stage.End()
		return nil, invalidInput("latencyMetric must be p50, p95, or p99; got %q", latencyMetric)
	}

	if req.CurrentPods < 1 {
		stage.End()
		return nil, invalidInput("currentPods must be a positive integer; got %d", req.CurrentPods)
	}
	if req.NewPods < 1 {
		stage.End()
		return nil, invalidInput("newPods must be a positive integer; got %d", req.NewPods)
	}

	modelType := cfg.Simulation.ScalingModel
	alpha := cfg.Simulation.ScalingAlpha
	if req.Model != nil {
		if req.Model.Type != "" {
			modelType = req.Model.Type
		}
		if req.Model.Alpha != nil {
			alpha = *req.Model.Alpha
		}
	}
	if modelType != "bounded_sqrt" && modelType != "linear" {
		stage.End()
		return nil, invalidInput("unknown scaling model %q; allowed: bounded_sqrt, linear", modelType)
	}
	if alpha < 0 || alpha > 1 {
		stage.End()
		return nil, invalidInput("alpha must be within [0,1]; got %v", alpha)
	}
	stage.Summarize("target", targetKey)
	stage.Summarize("model", modelType)
	stage.End()

	stage = tr.Start(StageFetchNeighborhood)
	neighborhood, err := client.Neighborhood(ctx, targetKey, maxDepth)
	if err != nil {
		stage.End()
		return nil, err
	}
	stage.Summarize("nodes", len(neighborhood.Nodes))
	stage.End()

	stage = tr.Start(StageStalenessCheck)
	confidence, freshness := checkFreshness(ctx, client)
	stage.End()

	stage = tr.Start(StageBuildSnapshot)
	snapshot := BuildSnapshot(neighborhood)
	if _, ok := snapshot.Nodes[snapshot.TargetKey]; ok && snapshot.TargetKey != "" {
		targetKey = snapshot.TargetKey
	}
	targetNode, ok := snapshot.Nodes[targetKey]
	if !ok {
		stage.End()
		return nil, notFound("service not found in topology: %s", targetKey)
	}
	stage.End()
	target := refFor(targetNode, targetKey)

	// Baseline: rate-weighted mean of the chosen percentile over incoming
	// edges carrying traffic. No qualifying edge means no latency estimate.
	stage = tr.Start(StageComputeImpact)
	var weighted, totalRate float64
	for _, edge := range snapshot.IncomingEdges[targetKey] {
		if edge.Rate <= 0 {
			continue
		}
		if lat := edge.Latency(latencyMetric); lat != nil {
			weighted += edge.Rate * *lat
			totalRate += edge.Rate
		}
	}

	adjusted := make(map[string]float64)
	var baseline, projected *float64
	if totalRate > 0 {
		base := weighted / totalRate
		var proj float64
		switch modelType {
		case "bounded_sqrt":
			proj = boundedSqrtProjection(base, req.CurrentPods, req.NewPods, alpha, cfg.Simulation.MinLatencyFactor)
		case "linear":
			proj = linearProjection(base, req.CurrentPods, req.NewPods)
		}
		baseline = &base
		projected = &proj
		adjusted[targetKey] = proj
	}

	callers := propagateCallerLatency(snapshot, targetKey, latencyMetric, adjusted)

	stage.End()

	stage = tr.Start(StagePathAnalysis)
	topPaths := TopPathsToTarget(snapshot, targetKey, maxDepth, cfg.Simulation.MaxPathsReturned)
	affectedPaths, bestByCaller := scorePaths(snapshot, topPaths, latencyMetric, adjusted)
	stage.Summarize("paths", len(affectedPaths))
	stage.End()

	for i := range callers {
		c := &callers[i]
		if best, ok := bestByCaller[c.ServiceID]; ok && best.DeltaMs != nil {
			c.EndToEndBeforeMs = best.BeforeMs
			c.EndToEndAfterMs = best.AfterMs
			c.EndToEndDeltaMs = best.DeltaMs
			c.ViaPath = best.Path
		}
	}
	if len(callers) > cfg.Simulation.MaxPathsReturned {
		callers = callers[:cfg.Simulation.MaxPathsReturned]
	}

	direction := "none"
	switch {
	case req.NewPods > req.CurrentPods:
		direction = "up"
	case req.NewPods < req.CurrentPods:
		direction = "down"
	}

	var delta *float64
	if baseline != nil && projected != nil {
		d := *projected - *baseline
		delta = &d
	}

	result := &ScalingResult{
		Target: target,
		Neighborhood: NeighborhoodMeta{
			Description:  "k-hop upstream subgraph around target (not full graph)",
			ServiceCount: len(snapshot.Nodes),
			EdgeCount:    len(snapshot.Edges),
			DepthUsed:    maxDepth,
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		},
		DataFreshness:    freshness,
		Confidence:       confidence,
		LatencyMetric:    latencyMetric,
		ScalingModel:     ScalingModel{Type: modelType, Alpha: &alpha},
		CurrentPods:      req.CurrentPods,
		NewPods:          req.NewPods,
		ScalingDirection: direction,
		LatencyEstimate: LatencyEstimate{
			Description: "Rate-weighted mean of incoming edge latency to target",
			BaselineMs:  baseline,
			ProjectedMs: projected,
			DeltaMs:     delta,
			Unit:        "milliseconds",
		},
		AffectedCallers: ScalingCallers{
			Description: "Edge-level impact: deltaMs is change in this caller's direct outgoing edge latency. endToEndDeltaMs is cumulative path latency change.",
			Items:       callers,
		},
		AffectedPaths: affectedPaths,
	}

	result.Explanation = scalingExplanation(target.Name, direction, req.CurrentPods, req.NewPods,
		baseline, projected, delta, len(callers), len(affectedPaths))

	incomplete := 0
	for _, p := range affectedPaths {
		if p.IncompleteData {
			incomplete++
		}
	}
	if incomplete > 0 {
		result.Warnings = []string{fmt.Sprintf(
			"%d of %d path(s) have incomplete latency data (missing edge metrics). Results may be partial.",
			incomplete, len(affectedPaths))}
	}

	stage = tr.Start(StageRecommendations)
	result.Recommendations = ScalingRecommendations(result)
	stage.Summarize("count", len(result.Recommendations))
	stage.End()

	result.Trace = tr.Result()
	return result, nil
}

// boundedSqrtProjection models diminishing returns: an alpha share of the
// latency is serialization cost pods cannot remove, the rest improves with
// 1/sqrt of the pod ratio, floored at baseline·minLatencyFactor.
func boundedSqrtProjection(baseline float64, currentPods, newPods int, alpha, minLatencyFactor float64) float64 {
	ratio := float64(newPods) / float64(currentPods)
	improvement := 1.0 / math.Sqrt(ratio)
	projected := baseline * (alpha + (1.0-alpha)*improvement)

	floor := baseline * minLatencyFactor
	return math.Max(projected, floor)
}

// linearProjection assumes latency inversely proportional to pod count.
func linearProjection(baseline float64, currentPods, newPods int) float64 {
	return baseline * (float64(currentPods) / float64(newPods))
}

// weightedMeanLatency computes Σ(rate·lat)/Σ(rate) over edges, substituting
// adjusted values by edge target. Any contributing edge with a missing
// latency makes the result unknowable, hence nil.
func weightedMeanLatency(edges []*Edge, metric string, adjusted map[string]float64) *float64 {
	var weighted, totalRate float64
	for _, edge := range edges {
		if edge.Rate <= 0 {
			continue
		}

		var lat float64
		if adj, ok := adjusted[edge.Target]; ok {
			lat = adj
		} else if l := edge.Latency(metric); l != nil {
			lat = *l
		} else {
			return nil
		}

		weighted += edge.Rate * lat
		totalRate += edge.Rate
	}
	if totalRate == 0 {
		return nil
	}
	mean := weighted / totalRate
	return &mean
}

// propagateCallerLatency computes before/after weighted-mean outgoing latency
// for every non-target node that calls anything, ordered by absolute delta.
func propagateCallerLatency(snapshot *GraphSnapshot, targetKey, metric string, adjusted map[string]float64) []ScalingCallerImpact {
	callers := make([]ScalingCallerImpact, 0)
	for key, node := range snapshot.Nodes {
		if key == targetKey {
			continue
		}
		outEdges := snapshot.OutgoingEdges[key]
		if len(outEdges) == 0 {
			continue
		}

		before := weightedMeanLatency(outEdges, metric, nil)
		after := weightedMeanLatency(outEdges, metric, adjusted)

		var delta *float64
		if before != nil && after != nil {
			d := *after - *before
			delta = &d
		}

		hops := hopDistance(snapshot, key, targetKey)
		if hops < 0 {
			hops = 0
		}

		ref := refFor(node, key)
		callers = append(callers, ScalingCallerImpact{
			ServiceID:   ref.ServiceID,
			Name:        ref.Name,
			Namespace:   ref.Namespace,
			HopDistance: hops,
			BeforeMs:    before,
			AfterMs:     after,
			DeltaMs:     delta,
		})
	}

	sort.SliceStable(callers, func(i, j int) bool {
		di, dj := callers[i].DeltaMs, callers[j].DeltaMs
		if di == nil && dj == nil {
			return callers[i].ServiceID < callers[j].ServiceID
		}
		if di == nil {
			return false
		}
		if dj == nil {
			return true
		}
		if math.Abs(*di) != math.Abs(*dj) {
			return math.Abs(*di) > math.Abs(*dj)
		}
		return callers[i].ServiceID < callers[j].ServiceID
	})
	return callers
}

// scorePaths sums edge latencies along each top path before and after the
// adjustment. A missing edge or latency marks the path incomplete and leaves
// its numbers null. Also tracks each start node's highest-throughput path.
func scorePaths(snapshot *GraphSnapshot, paths []PathImpact, metric string, adjusted map[string]float64) ([]ScalingPathImpact, map[string]ScalingPathImpact) {
	scored := make([]ScalingPathImpact, 0, len(paths))
	bestByCaller := make(map[string]ScalingPathImpact)

	for _, p := range paths {
		var beforeSum, afterSum float64
		incomplete := false

		for i := 0; i+1 < len(p.Path); i++ {
			edge := findEdge(snapshot, p.Path[i], p.Path[i+1])
			if edge == nil {
				incomplete = true
				break
			}
			lat := edge.Latency(metric)
			if lat == nil {
				incomplete = true
				break
			}

			beforeSum += *lat
			if adj, ok := adjusted[edge.Target]; ok {
				afterSum += adj
			} else {
				afterSum += *lat
			}
		}

		sp := ScalingPathImpact{
			Path:           p.Path,
			PathRps:        p.PathRps,
			IncompleteData: incomplete,
		}
		if !incomplete {
			b, a := beforeSum, afterSum
			d := a - b
			sp.BeforeMs, sp.AfterMs, sp.DeltaMs = &b, &a, &d
		}
		scored = append(scored, sp)

		start := p.Path[0]
		if best, exists := bestByCaller[start]; !exists || sp.PathRps > best.PathRps {
			bestByCaller[start] = sp
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		di, dj := scored[i].DeltaMs, scored[j].DeltaMs
		if di == nil && dj == nil {
			return joinPath(scored[i].Path) < joinPath(scored[j].Path)
		}
		if di == nil {
			return false
		}
		if dj == nil {
			return true
		}
		if math.Abs(*di) != math.Abs(*dj) {
			return math.Abs(*di) > math.Abs(*dj)
		}
		return joinPath(scored[i].Path) < joinPath(scored[j].Path)
	})

	return scored, bestByCaller
}

func findEdge(snapshot *GraphSnapshot, source, target string) *Edge {
	for _, e := range snapshot.OutgoingEdges[source] {
		if e.Target == target {
			return e
		}
	}
	return nil
}

// hopDistance is the shortest directed distance from source to target, -1
// when unconnected.
func hopDistance(snapshot *GraphSnapshot, source, target string) int {
	if source == target {
		return 0
	}

	type item struct {
		key  string
		dist int
	}
	visited := map[string]bool{source: true}
	queue := []item{{source, 0}}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, e := range snapshot.OutgoingEdges[curr.key] {
			if e.Target == target {
				return curr.dist + 1
			}
			if !visited[e.Target] {
				visited[e.Target] = true
				queue = append(queue, item{e.Target, curr.dist + 1})
			}
		}
	}
	return -1
}

func scalingExplanation(name, direction string, currentPods, newPods int, baseline, projected, delta *float64, callerCount, pathCount int) string {
	directionWord := "at same level"
	switch direction {
	case "up":
		directionWord = "up"
	case "down":
		directionWord = "down"
	}

	if baseline == nil || projected == nil || delta == nil {
		return fmt.Sprintf("Scaling %s %s from %d to %d pods. Latency impact unknown due to missing edge metrics. %d upstream caller(s) identified across %d path(s).",
			name, directionWord, currentPods, newPods, callerCount, pathCount)
	}

	verb := "maintains"
	if *delta < 0 {
		verb = "improves"
	} else if *delta > 0 {
		verb = "degrades"
	}
	return fmt.Sprintf("Scaling %s %s from %d to %d pods %s latency by %.1fms (baseline: %.1fms → projected: %.1fms). %d upstream caller(s) affected across %d path(s).",
		name, directionWord, currentPods, newPods, verb, math.Abs(*delta), *baseline, *projected, callerCount, pathCount)
}
