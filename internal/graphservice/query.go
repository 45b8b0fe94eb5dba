package graphservice

import (
	"context"

	"github.com/starford/tagweave/internal/apperr"
	"github.com/starford/tagweave/internal/graph"
	"github.com/starford/tagweave/internal/layout"
)

// Neighbors returns the distinct neighbors of id.
func (s *Service) Neighbors(ctx context.Context, id string) ([]graph.Node, error) {
	g, err := s.node(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.Neighbors(id), nil
}

// Connected returns every node within depth hops of id.
func (s *Service) Connected(ctx context.Context, id string, depth int) ([]graph.Node, error) {
	if depth < 1 {
		return nil, apperr.Invalidf("depth counts hops from the start node", "depth must be at least 1, got %d", depth)
	}
	g, err := s.node(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.ConnectedNodes(id, depth), nil
}

// Path returns a path from one node to another. ok is false when the two
// are not connected.
func (s *Service) Path(ctx context.Context, from, to string) (path []graph.Node, ok bool, err error) {
	g, err := s.node(ctx, from)
	if err != nil {
		return nil, false, err
	}
	if !g.HasNode(to) {
		return nil, false, apperr.NotFoundf("node %q", to)
	}
	path, ok = g.FindPath(from, to)
	return path, ok, nil
}

// Strongest returns id's incident edges by descending weight. limit <= 0
// returns all of them.
func (s *Service) Strongest(ctx context.Context, id string, limit int) ([]graph.Connection, error) {
	g, err := s.node(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.StrongestConnections(id, limit), nil
}

// Clusters returns the connected components with at least minSize nodes.
func (s *Service) Clusters(ctx context.Context, minSize int) ([][]graph.Node, error) {
	if minSize < 1 {
		return nil, apperr.Invalidf("", "min_size must be at least 1, got %d", minSize)
	}
	g, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return g.FindClusters(minSize), nil
}

// Statistics summarizes the published graph.
func (s *Service) Statistics(ctx context.Context) (graph.Stats, error) {
	g, err := s.ready(ctx)
	if err != nil {
		return graph.Stats{}, err
	}
	return g.Statistics(), nil
}

// Export returns the published graph restricted to the given edge kinds.
func (s *Service) Export(ctx context.Context, kinds ...graph.RelationKind) (graph.Export, error) {
	g, err := s.ready(ctx)
	if err != nil {
		return graph.Export{}, err
	}
	return g.Export(kinds...), nil
}

// Layout returns the latest layout frame.
func (s *Service) Layout() (layout.Frame, bool) {
	if s.layout == nil {
		return layout.Frame{}, false
	}
	return s.layout.Snapshot(), true
}

// Resize changes the layout canvas.
func (s *Service) Resize(size layout.Size) {
	if s.layout != nil {
		s.layout.Resize(size)
	}
}

// DragBegin pins a node under the pointer.
func (s *Service) DragBegin(ctx context.Context, id string) error {
	if _, err := s.node(ctx, id); err != nil {
		return err
	}
	if s.layout != nil {
		s.layout.BeginDrag(id)
	}
	return nil
}

// DragChange moves a dragged node by translation from where the drag began.
func (s *Service) DragChange(ctx context.Context, id string, translation layout.Vec) error {
	if _, err := s.node(ctx, id); err != nil {
		return err
	}
	if s.layout != nil {
		s.layout.Drag(id, translation)
	}
	return nil
}

// DragEnd releases a dragged node.
func (s *Service) DragEnd(ctx context.Context, id string, translation layout.Vec) error {
	if _, err := s.node(ctx, id); err != nil {
		return err
	}
	if s.layout != nil {
		s.layout.EndDrag(id, translation)
	}
	return nil
}
