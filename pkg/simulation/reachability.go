package simulation

// Entrypoints are nodes with no incoming edges within the snapshot, the
// target excluded. A truncated neighborhood may have none; every non-target
// node is then treated as a potential entrypoint.
func pickEntrypoints(snapshot *GraphSnapshot, blockedKey string) []string {
	var entrypoints []string
	for k := range snapshot.Nodes {
		if k == blockedKey {
			continue
		}
		if len(snapshot.IncomingEdges[k]) == 0 {
			entrypoints = append(entrypoints, k)
		}
	}

	if len(entrypoints) == 0 {
		for k := range snapshot.Nodes {
			if k != blockedKey {
				entrypoints = append(entrypoints, k)
			}
		}
	}
	return entrypoints
}

// reachableFrom runs a BFS from the entrypoints with blockedKey treated as
// removed: no path may enter or pass through it.
func reachableFrom(snapshot *GraphSnapshot, entrypoints []string, blockedKey string) map[string]bool {
	visited := make(map[string]bool, len(snapshot.Nodes))
	queue := make([]string, 0, len(entrypoints))

	for _, e := range entrypoints {
		if e == "" || e == blockedKey {
			continue
		}
		visited[e] = true
		queue = append(queue, e)
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, edge := range snapshot.OutgoingEdges[curr] {
			next := edge.Target
			if next == "" || next == blockedKey || visited[next] {
				continue
			}
			if _, exists := snapshot.Nodes[next]; !exists {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return visited
}

type boundaryLoss struct {
	FromTargetRps        float64
	FromReachableCutsRps float64
	TotalRps             float64
}

// boundaryTrafficLoss estimates, for every node cut off by the removal, how
// much inbound traffic disappears: edges from the target itself plus edges
// from nodes that remain reachable but can no longer deliver through the cut.
func boundaryTrafficLoss(snapshot *GraphSnapshot, reachable map[string]bool, blockedKey string) map[string]boundaryLoss {
	lost := make(map[string]boundaryLoss)

	for k := range snapshot.Nodes {
		if k == blockedKey || reachable[k] {
			continue
		}

		var fromTarget, fromCuts float64
		for _, e := range snapshot.IncomingEdges[k] {
			if e.Source == blockedKey {
				fromTarget += e.Rate
				continue
			}
			if reachable[e.Source] {
				fromCuts += e.Rate
			}
		}

		lost[k] = boundaryLoss{
			FromTargetRps:        fromTarget,
			FromReachableCutsRps: fromCuts,
			TotalRps:             fromTarget + fromCuts,
		}
	}
	return lost
}
