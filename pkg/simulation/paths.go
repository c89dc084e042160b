package simulation

import (
	"math"
	"sort"
	"strings"
)

// TopPathsToTarget enumerates caller→target paths by bottleneck throughput.
//
// Starts a bounded DFS from every non-target node in ascending key order.
// Depth counts hops (edges), paths are simple (no repeated node), and
// accumulation stops at 2×maxPaths to bound cost on dense neighborhoods.
// The oversampled set is sorted by pathRps descending, de-duplicated on the
// joined key, and truncated to maxPaths.
func TopPathsToTarget(snapshot *GraphSnapshot, targetKey string, maxDepth, maxPaths int) []PathImpact {
	var found []PathImpact
	budget := maxPaths * 2

	startKeys := make([]string, 0, len(snapshot.Nodes))
	for k := range snapshot.Nodes {
		if k != targetKey {
			startKeys = append(startKeys, k)
		}
	}
	sort.Strings(startKeys)

	visited := make(map[string]bool)

	var dfs func(current string, path []string, minRate float64)
	dfs = func(current string, path []string, minRate float64) {
		if len(found) >= budget {
			return
		}

		hops := len(path) - 1
		if current == targetKey && hops >= 1 {
			p := make([]string, len(path))
			copy(p, path)
			found = append(found, PathImpact{Path: p, PathRps: minRate})
			return
		}
		if hops >= maxDepth {
			return
		}

		for _, edge := range snapshot.OutgoingEdges[current] {
			if visited[edge.Target] {
				continue
			}
			visited[edge.Target] = true
			dfs(edge.Target, append(path, edge.Target), math.Min(minRate, edge.Rate))
			delete(visited, edge.Target)
		}
	}

	for _, start := range startKeys {
		if len(found) >= budget {
			break
		}
		clear(visited)
		visited[start] = true
		dfs(start, []string{start}, math.Inf(1))
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].PathRps != found[j].PathRps {
			return found[i].PathRps > found[j].PathRps
		}
		return joinPath(found[i].Path) < joinPath(found[j].Path)
	})

	seen := make(map[string]bool, len(found))
	out := make([]PathImpact, 0, maxPaths)
	for _, p := range found {
		key := joinPath(p.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
		if len(out) == maxPaths {
			break
		}
	}
	return out
}

func joinPath(path []string) string {
	return strings.Join(path, "→")
}
