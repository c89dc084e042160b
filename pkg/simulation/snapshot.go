package simulation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"topology-impact-engine/pkg/clients/graph"
)

// CanonicalID builds the namespace:name key, defaulting the namespace.
func CanonicalID(namespace, name string) string {
	if namespace == "" {
		namespace = "default"
	}
	return fmt.Sprintf("%s:%s", namespace, name)
}

// SplitID is the inverse of CanonicalID; a bare name maps to the default
// namespace.
func SplitID(id string) (namespace, name string) {
	if id == "" {
		return "default", ""
	}
	if idx := strings.Index(id, ":"); idx > 0 {
		return id[:idx], id[idx+1:]
	}
	return "default", id
}

// BuildSnapshot canonicalizes a neighborhood payload into a GraphSnapshot:
// nodes keyed by namespace:name, edges rewritten onto canonical keys, and
// adjacency lists sorted for deterministic traversal.
func BuildSnapshot(resp *graph.NeighborhoodResponse) *GraphSnapshot {
	nodes := make(map[string]*Node, len(resp.Nodes))
	nameToID := make(map[string]string, len(resp.Nodes)*2)

	for _, n := range resp.Nodes {
		key := CanonicalID(n.Namespace, n.Name)
		nodes[key] = &Node{Name: n.Name, Namespace: n.Namespace}
		nameToID[n.Name] = key
		nameToID[key] = key
	}

	resolve := func(endpoint string) string {
		if mapped, ok := nameToID[endpoint]; ok {
			return mapped
		}
		return CanonicalID("default", endpoint)
	}

	edges := make([]*Edge, 0, len(resp.Edges))
	incoming := make(map[string][]*Edge)
	outgoing := make(map[string][]*Edge)

	for _, e := range resp.Edges {
		edge := &Edge{
			Source:    resolve(e.From),
			Target:    resolve(e.To),
			Rate:      finiteOrZero(e.Rate),
			ErrorRate: finiteOrZero(e.ErrorRate),
			P50:       finiteOrNil(e.P50),
			P95:       finiteOrNil(e.P95),
			P99:       finiteOrNil(e.P99),
		}
		edges = append(edges, edge)
		incoming[edge.Target] = append(incoming[edge.Target], edge)
		outgoing[edge.Source] = append(outgoing[edge.Source], edge)
	}

	// Child order for path enumeration: rate descending, target id ascending.
	for _, list := range outgoing {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Rate != list[j].Rate {
				return list[i].Rate > list[j].Rate
			}
			return list[i].Target < list[j].Target
		})
	}
	for _, list := range incoming {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Rate != list[j].Rate {
				return list[i].Rate > list[j].Rate
			}
			return list[i].Source < list[j].Source
		})
	}

	return &GraphSnapshot{
		Nodes:         nodes,
		IncomingEdges: incoming,
		OutgoingEdges: outgoing,
		Edges:         edges,
		TargetKey:     resolve(resp.Center),
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}

// refFor materializes the output ServiceRef for a snapshot key, preferring
// node metadata over the parsed key.
func refFor(node *Node, key string) ServiceRef {
	ns, name := SplitID(key)
	if node != nil {
		if node.Name != "" {
			name = node.Name
		}
		if node.Namespace != "" {
			ns = node.Namespace
		}
	}
	return ServiceRef{
		ServiceID: CanonicalID(ns, name),
		Name:      name,
		Namespace: ns,
	}
}
