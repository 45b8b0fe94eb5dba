package graph

// Stats summarizes a graph.
type Stats struct {
	NodeCount     int                  `json:"node_count"`
	EdgeCount     int                  `json:"edge_count"`
	AverageDegree float64              `json:"average_degree"`
	EdgesByKind   map[RelationKind]int `json:"edges_by_kind"`
}

// Statistics counts nodes and edges. Average degree is 2·edges/nodes, or 0
// for an empty graph.
func (g *RelationGraph) Statistics() Stats {
	s := Stats{
		NodeCount:   len(g.nodes),
		EdgeCount:   len(g.edges),
		EdgesByKind: make(map[RelationKind]int),
	}
	for _, e := range g.edges {
		s.EdgesByKind[e.Kind]++
	}
	if s.NodeCount > 0 {
		s.AverageDegree = 2 * float64(s.EdgeCount) / float64(s.NodeCount)
	}
	return s
}

// ExportNode is a node in renderer-neutral form.
type ExportNode struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Subtitle string `json:"subtitle,omitempty"`
	Kind     string `json:"kind"`
	TagType  string `json:"tag_type,omitempty"`
}

// ExportEdge is an edge with metadata reduced to primitives.
type ExportEdge struct {
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Kind     string         `json:"kind"`
	Weight   float64        `json:"weight"`
	Metadata map[string]any `json:"metadata"`
}

// Export is the serializable {nodes, edges} view of a graph.
type Export struct {
	Nodes []ExportNode `json:"nodes"`
	Edges []ExportEdge `json:"edges"`
}

// Export flattens the graph, keeping only edges of the given kinds. With no
// kinds every edge is kept. All nodes are always included.
func (g *RelationGraph) Export(kinds ...RelationKind) Export {
	keep := make(map[RelationKind]struct{}, len(kinds))
	for _, k := range kinds {
		keep[k] = struct{}{}
	}

	out := Export{
		Nodes: make([]ExportNode, 0, len(g.nodes)),
		Edges: make([]ExportEdge, 0, len(g.edges)),
	}
	for _, n := range g.Nodes() {
		en := ExportNode{ID: n.ID, Label: n.Label, Subtitle: n.Subtitle, Kind: string(n.Kind)}
		if n.TagType != nil {
			en.TagType = n.TagType.ID()
		}
		out.Nodes = append(out.Nodes, en)
	}
	for _, e := range g.edges {
		if len(keep) > 0 {
			if _, ok := keep[e.Kind]; !ok {
				continue
			}
		}
		out.Edges = append(out.Edges, ExportEdge{
			Source:   e.From,
			Target:   e.To,
			Kind:     string(e.Kind),
			Weight:   e.Weight,
			Metadata: e.Metadata.Primitives(),
		})
	}
	return out
}
