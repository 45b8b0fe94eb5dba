// Package graph holds the relation graph built over entities and the
// queries the UI runs against it.
package graph

import (
	"log/slog"
	"sort"

	"github.com/starford/tagweave/internal/models"
)

// NodeKind discriminates entity nodes from tag nodes.
type NodeKind string

const (
	NodeKindEntity NodeKind = "entity"
	NodeKindTag    NodeKind = "tag"
)

// RelationKind is the category of an inferred edge.
type RelationKind string

const (
	RelationSimilarity   RelationKind = "similarity"
	RelationTagOverlap   RelationKind = "tag-overlap"
	RelationSharedRoot   RelationKind = "shared-root"
	RelationGeoProximity RelationKind = "geo-proximity"
	RelationCustom       RelationKind = "custom"
)

// RelationKinds lists every kind in a fixed order.
var RelationKinds = []RelationKind{
	RelationSimilarity,
	RelationTagOverlap,
	RelationSharedRoot,
	RelationGeoProximity,
	RelationCustom,
}

// ParseRelationKind reports whether s names a relation kind.
func ParseRelationKind(s string) (RelationKind, bool) {
	for _, k := range RelationKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Node is a vertex in the graph. TagType is set for tag nodes only.
type Node struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Subtitle string          `json:"subtitle,omitempty"`
	Kind     NodeKind        `json:"kind"`
	TagType  *models.TagType `json:"tag_type,omitempty"`
}

// Edge is stored with a direction but traversed as undirected.
type Edge struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Kind     RelationKind `json:"kind"`
	Weight   float64      `json:"weight"`
	Metadata Metadata     `json:"metadata,omitempty"`
}

// other returns the endpoint of e that is not id.
func (e Edge) other(id string) string {
	if e.From == id {
		return e.To
	}
	return e.From
}

// RelationGraph is an adjacency-indexed multigraph. Parallel edges between
// the same pair are kept. It is not safe for concurrent mutation; once
// built it is only read.
type RelationGraph struct {
	nodes    map[string]Node
	outgoing map[string][]Edge
	incoming map[string][]Edge
	edges    []Edge
	logger   *slog.Logger
}

// New returns an empty graph. A nil logger uses slog.Default.
func New(logger *slog.Logger) *RelationGraph {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelationGraph{
		nodes:    make(map[string]Node),
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
		logger:   logger,
	}
}

// AddNode inserts n, replacing any node with the same id.
func (g *RelationGraph) AddNode(n Node) {
	g.nodes[n.ID] = n
}

// AddEdge inserts e and indexes it under both endpoints. Edges naming an
// unknown node are dropped and AddEdge returns false.
func (g *RelationGraph) AddEdge(e Edge) bool {
	_, okFrom := g.nodes[e.From]
	_, okTo := g.nodes[e.To]
	if !okFrom || !okTo {
		g.logger.Debug("graph: dropping edge with unknown endpoint",
			slog.String("from", e.From),
			slog.String("to", e.To),
			slog.String("kind", string(e.Kind)))
		return false
	}
	g.outgoing[e.From] = append(g.outgoing[e.From], e)
	g.incoming[e.To] = append(g.incoming[e.To], e)
	g.edges = append(g.edges, e)
	return true
}

// Node returns the node with id.
func (g *RelationGraph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id is in the graph.
func (g *RelationGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *RelationGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, parallel edges included.
func (g *RelationGraph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes sorted by id.
func (g *RelationGraph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodeIDs returns all node ids sorted.
func (g *RelationGraph) NodeIDs() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Edges returns all edges in insertion order.
func (g *RelationGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgesOf returns the outgoing then incoming edges touching id.
func (g *RelationGraph) EdgesOf(id string) []Edge {
	out := make([]Edge, 0, len(g.outgoing[id])+len(g.incoming[id]))
	out = append(out, g.outgoing[id]...)
	out = append(out, g.incoming[id]...)
	return out
}
