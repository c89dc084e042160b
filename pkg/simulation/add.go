package simulation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"topology-impact-engine/pkg/clients/graph"
)

// SimulateAdd evaluates whether the cluster can host a new service with the
// requested per-replica resources, scoring every node's spare capacity from
// the provider's placement data. Each node is assessed independently; no
// capacity pooling heuristics.
func SimulateAdd(ctx context.Context, client *graph.Client, req AddRequest, tr Tracer) (*AddResult, error) {
	stage := tr.Start(StageScenarioParse)
	if req.ServiceName == "" {
		req.ServiceName = "new-service"
	}
	if req.CPURequest == 0 {
		req.CPURequest = 0.1
	}
	if req.RAMRequest == 0 {
		req.RAMRequest = 128
	}
	if req.Replicas == 0 {
		req.Replicas = 1
	}
	if req.CPURequest < 0 || req.RAMRequest < 0 || req.Replicas < 0 {
		stage.End()
		return nil, invalidInput("cpuRequest, ramRequest, and replicas must be positive")
	}
	stage.Summarize("service", req.ServiceName)
	stage.End()

	stage = tr.Start(StageFetchNeighborhood)
	services, err := client.ServicesWithPlacement(ctx)
	if err != nil {
		stage.End()
		return nil, err
	}
	stage.Summarize("services", len(services))
	stage.End()

	stage = tr.Start(StageComputeImpact)
	type clusterNode struct {
		name       string
		cpuTotal   float64
		cpuUsedPct float64
		ramTotalMB float64
		ramUsedMB  float64
	}
	seen := make(map[string]*clusterNode)
	for _, svc := range services {
		for _, placement := range svc.Placement.Nodes {
			if placement.Node == "" {
				continue
			}
			if _, ok := seen[placement.Node]; ok {
				continue
			}
			seen[placement.Node] = &clusterNode{
				name:       placement.Node,
				cpuTotal:   float64(placement.Resources.CPU.Cores),
				cpuUsedPct: placement.Resources.CPU.UsagePercent,
				ramTotalMB: placement.Resources.RAM.TotalMB,
				ramUsedMB:  placement.Resources.RAM.UsedMB,
			}
		}
	}
	if len(seen) == 0 {
		stage.End()
		return nil, notFound("no nodes found in cluster state; cannot perform placement analysis")
	}

	ramPerPod := float64(req.RAMRequest)
	var nodes []NodeCapacity
	totalCapacity := 0

	for _, n := range seen {
		cpuAvail := math.Max(0, n.cpuTotal-(n.cpuUsedPct/100.0)*n.cpuTotal)
		ramAvail := math.Max(0, n.ramTotalMB-n.ramUsedMB)

		maxByCPU := 0
		if req.CPURequest > 0 {
			maxByCPU = int(cpuAvail / req.CPURequest)
		}
		maxByRAM := 0
		if ramPerPod > 0 {
			maxByRAM = int(ramAvail / ramPerPod)
		}
		maxPods := min(maxByCPU, maxByRAM)
		canFit := maxPods >= 1

		nc := NodeCapacity{
			Node:           n.name,
			CPUAvailable:   round2(cpuAvail),
			RAMAvailableMB: round2(ramAvail),
			CPUTotal:       n.cpuTotal,
			RAMTotalMB:     n.ramTotalMB,
			CanFit:         canFit,
			MaxPods:        maxPods,
			Score:          maxPods,
		}
		if !canFit {
			nc.Reason = fmt.Sprintf("insufficient capacity for %.2f CPU / %dMB per pod", req.CPURequest, req.RAMRequest)
		}
		nodes = append(nodes, nc)
		totalCapacity += maxPods
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Score != nodes[j].Score {
			return nodes[i].Score > nodes[j].Score
		}
		return nodes[i].Node < nodes[j].Node
	})

	suitable := make([]NodeCapacity, 0, len(nodes))
	for _, n := range nodes {
		if n.CanFit {
			suitable = append(suitable, n)
		}
	}

	success := totalCapacity >= req.Replicas
	stage.Summarize("totalCapacityPods", totalCapacity)
	stage.End()

	stage = tr.Start(StageRecommendations)
	risk := dependencyRisk(req.Dependencies)

	recs := []Recommendation{}
	if !success {
		recs = append(recs, Recommendation{
			Type:     "capacity",
			Priority: "high",
			Target:   req.ServiceName,
			Reason:   fmt.Sprintf("Cluster fits at most %d replica(s), %d requested", totalCapacity, req.Replicas),
			Action:   "Add nodes or reduce per-replica resource requests",
		})
	}
	if len(req.Dependencies) >= 3 {
		recs = append(recs, Recommendation{
			Type:     "topology-review",
			Priority: "medium",
			Target:   req.ServiceName,
			Reason:   fmt.Sprintf("%d declared dependencies increase cascade exposure", len(req.Dependencies)),
			Action:   "Run failure simulations against each declared dependency before rollout",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Type:     "monitoring",
			Priority: "low",
			Target:   req.ServiceName,
			Reason:   "Placement looks feasible",
			Action:   fmt.Sprintf("Configure availability alerting for %s before first deploy", req.ServiceName),
		})
	}
	stage.End()

	explanation := fmt.Sprintf("Cluster can host %d pod(s) of %s at %.2f CPU / %dMB each; %d replica(s) requested.",
		totalCapacity, req.ServiceName, req.CPURequest, req.RAMRequest, req.Replicas)

	result := &AddResult{
		TargetServiceName: req.ServiceName,
		Success:           success,
		Confidence:        "high",
		Explanation:       explanation,
		TotalCapacityPods: totalCapacity,
		SuitableNodes:     suitable,
		RiskAnalysis:      risk,
		Recommendations:   recs,
	}
	return result, nil
}

func dependencyRisk(deps []DependencyRef) AddRiskAnalysis {
	switch {
	case len(deps) == 0:
		return AddRiskAnalysis{
			DependencyRisk: "low",
			Description:    "No declared dependencies; the new service adds no upstream coupling.",
		}
	case len(deps) < 3:
		return AddRiskAnalysis{
			DependencyRisk: "medium",
			Description:    fmt.Sprintf("%d declared dependencies; failures in those services will surface in the new service.", len(deps)),
		}
	default:
		return AddRiskAnalysis{
			DependencyRisk: "high",
			Description:    fmt.Sprintf("%d declared dependencies create a wide failure surface for the new service.", len(deps)),
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
