package graph

import (
	"sort"
)

// Connection is one edge seen from a given node.
type Connection struct {
	Node   Node         `json:"node"`
	Weight float64      `json:"weight"`
	Kind   RelationKind `json:"kind"`
}

// neighborIDs returns the distinct nodes adjacent to id in edge order.
func (g *RelationGraph) neighborIDs(id string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range g.EdgesOf(id) {
		n := e.other(id)
		if n == id {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Neighbors returns every node sharing an edge with id, in either
// direction, sorted by id.
func (g *RelationGraph) Neighbors(id string) []Node {
	ids := g.neighborIDs(id)
	sort.Strings(ids)
	out := make([]Node, 0, len(ids))
	for _, n := range ids {
		out = append(out, g.nodes[n])
	}
	return out
}

// ConnectedNodes walks depth-first from id up to maxDepth hops and returns
// the nodes visited, excluding id itself. Each node is visited once, so a
// node first reached by a long route is not revisited by a shorter one.
func (g *RelationGraph) ConnectedNodes(id string, maxDepth int) []Node {
	if !g.HasNode(id) {
		return nil
	}
	visited := make(map[string]struct{})
	var out []Node

	var walk func(cur string, depth int)
	walk = func(cur string, depth int) {
		if depth > maxDepth {
			return
		}
		if _, ok := visited[cur]; ok {
			return
		}
		visited[cur] = struct{}{}
		if depth > 0 {
			out = append(out, g.nodes[cur])
		}
		for _, n := range g.neighborIDs(cur) {
			walk(n, depth+1)
		}
	}
	walk(id, 0)
	return out
}

// FindPath returns the first path from one node to another found by a
// depth-first search. The path is not necessarily the shortest. ok is
// false when either node is unknown or no path exists.
func (g *RelationGraph) FindPath(from, to string) (path []Node, ok bool) {
	if !g.HasNode(from) || !g.HasNode(to) {
		return nil, false
	}
	visited := make(map[string]struct{})
	var trail []string

	var walk func(cur string) bool
	walk = func(cur string) bool {
		visited[cur] = struct{}{}
		trail = append(trail, cur)
		if cur == to {
			return true
		}
		for _, n := range g.neighborIDs(cur) {
			if _, seen := visited[n]; seen {
				continue
			}
			if walk(n) {
				return true
			}
		}
		trail = trail[:len(trail)-1]
		return false
	}

	if !walk(from) {
		return nil, false
	}
	path = make([]Node, len(trail))
	for i, id := range trail {
		path[i] = g.nodes[id]
	}
	return path, true
}

// StrongestConnections returns the edges touching id ordered by
// descending weight. Parallel edges to the same neighbor each appear.
// limit <= 0 returns all of them.
func (g *RelationGraph) StrongestConnections(id string, limit int) []Connection {
	edges := g.EdgesOf(id)
	out := make([]Connection, 0, len(edges))
	for _, e := range edges {
		out = append(out, Connection{
			Node:   g.nodes[e.other(id)],
			Weight: e.Weight,
			Kind:   e.Kind,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FindClusters returns the connected components of the undirected view of
// the graph that have at least minSize nodes. Components come out in order
// of their smallest node id, members in breadth-first order.
func (g *RelationGraph) FindClusters(minSize int) [][]Node {
	visited := make(map[string]struct{}, len(g.nodes))
	var clusters [][]Node

	for _, start := range g.NodeIDs() {
		if _, ok := visited[start]; ok {
			continue
		}
		visited[start] = struct{}{}
		queue := []string{start}
		var component []Node
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			component = append(component, g.nodes[cur])
			for _, n := range g.neighborIDs(cur) {
				if _, ok := visited[n]; ok {
					continue
				}
				visited[n] = struct{}{}
				queue = append(queue, n)
			}
		}
		if len(component) >= minSize {
			clusters = append(clusters, component)
		}
	}
	return clusters
}
