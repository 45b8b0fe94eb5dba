// Package builder infers a relation graph from a snapshot of entities.
package builder

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/tagweave/internal/graph"
	"github.com/starford/tagweave/internal/models"
	"github.com/starford/tagweave/internal/similarity"
)

// Config holds the edge-generation thresholds.
type Config struct {
	SimilarityThreshold float64
	SharedRootWeight    float64
	GeoMaxDistance      float64 // meters
	RootTagKey          string
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.7,
		SharedRootWeight:    0.9,
		GeoMaxDistance:      10000,
		RootTagKey:          "root",
	}
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithScorer replaces the default entity scorer.
func WithScorer(s similarity.Scorer) Option {
	return func(b *Builder) { b.scorer = s }
}

// WithTagNamer sets the registry used to name tag types in edge metadata.
func WithTagNamer(n models.TagNamer) Option {
	return func(b *Builder) { b.namer = n }
}

// Builder turns entities into a RelationGraph. It holds no state between
// builds and is safe for concurrent use.
type Builder struct {
	cfg    Config
	scorer similarity.Scorer
	namer  models.TagNamer
	logger *slog.Logger
}

// New creates a Builder.
func New(cfg Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:    cfg,
		scorer: similarity.DefaultScorer(),
		namer:  models.DefaultTagNamer{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type pass struct {
	name string
	run  func(ctx context.Context, es []models.Entity) ([]graph.Edge, error)
}

// Build creates a fresh graph from entities. Invalid entities and repeated
// ids are skipped. The four edge passes run concurrently; their results are
// inserted in a fixed order so the output does not depend on scheduling.
// Build only fails when ctx is cancelled.
func (b *Builder) Build(ctx context.Context, entities []models.Entity) (*graph.RelationGraph, error) {
	valid := b.filter(entities)

	g := graph.New(b.logger)
	for _, e := range valid {
		g.AddNode(entityNode(e))
	}

	passes := []pass{
		{"similarity", b.similarityEdges},
		{"tag-overlap", b.tagOverlapEdges},
		{"shared-root", b.sharedRootEdges},
		{"geo-proximity", b.geoEdges},
	}
	results := make([][]graph.Edge, len(passes))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range passes {
		eg.Go(func() error {
			edges, err := p.run(egCtx, valid)
			if err != nil {
				return err
			}
			results[i] = edges
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, edges := range results {
		for _, e := range edges {
			g.AddEdge(e)
		}
		b.logger.Debug("builder: pass done",
			slog.String("pass", passes[i].name),
			slog.Int("edges", len(edges)))
	}
	return g, nil
}

func (b *Builder) filter(entities []models.Entity) []models.Entity {
	seen := make(map[string]struct{}, len(entities))
	out := make([]models.Entity, 0, len(entities))
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			b.logger.Warn("builder: skipping invalid entity",
				slog.String("id", e.ID),
				slog.String("error", err.Error()))
			continue
		}
		if _, dup := seen[e.ID]; dup {
			b.logger.Warn("builder: skipping duplicate entity", slog.String("id", e.ID))
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func entityNode(e models.Entity) graph.Node {
	subtitle := e.Meaning
	if subtitle == "" {
		subtitle = e.Phonetic
	}
	return graph.Node{
		ID:       e.ID,
		Label:    e.Text,
		Subtitle: subtitle,
		Kind:     graph.NodeKindEntity,
	}
}

// similarityEdges links every pair whose entity similarity reaches the
// threshold.
func (b *Builder) similarityEdges(ctx context.Context, es []models.Entity) ([]graph.Edge, error) {
	var out []graph.Edge
	for i := range es {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(es); j++ {
			score := b.scorer.Entity(es[i], es[j])
			if score < b.cfg.SimilarityThreshold {
				continue
			}
			out = append(out, graph.Edge{
				From:     es[i].ID,
				To:       es[j].ID,
				Kind:     graph.RelationSimilarity,
				Weight:   score,
				Metadata: graph.Metadata{"score": graph.Number(score)},
			})
		}
	}
	return out, nil
}

// tagOverlapEdges groups entities by the set of tag types they carry and
// links members of the same group. Weight is the number of shared types
// over the larger tag count of the pair.
func (b *Builder) tagOverlapEdges(ctx context.Context, es []models.Entity) ([]graph.Edge, error) {
	type member struct {
		entity models.Entity
		types  map[string]struct{}
	}
	groups := make(map[string][]member)
	var order []string
	for _, e := range es {
		types := e.TagTypeIDs()
		key := setKey(types)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], member{entity: e, types: types})
	}

	var out []graph.Edge
	for _, key := range order {
		ms := groups[key]
		if len(ms) < 2 {
			continue
		}
		for i := range ms {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for j := i + 1; j < len(ms); j++ {
				shared := b.sharedTypes(ms[i].entity, ms[j].types)
				if len(shared) == 0 {
					continue
				}
				denom := max(len(ms[i].entity.Tags), len(ms[j].entity.Tags))
				weight := float64(len(shared)) / float64(denom)
				out = append(out, graph.Edge{
					From:   ms[i].entity.ID,
					To:     ms[j].entity.ID,
					Kind:   graph.RelationTagOverlap,
					Weight: weight,
					Metadata: graph.Metadata{
						"shared_types": graph.Text(strings.Join(shared, ", ")),
						"shared_count": graph.Number(float64(len(shared))),
					},
				})
			}
		}
	}
	return out, nil
}

// sharedTypes returns display names of e's tag types that appear in other,
// in e's tag order.
func (b *Builder) sharedTypes(e models.Entity, other map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, t := range e.Tags {
		id := t.Type.ID()
		if _, ok := other[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		names = append(names, b.namer.Name(t.Type))
	}
	return names
}

// sharedRootEdges links entities whose root tags carry the same multiset of
// values. Roots are taken as a near-certain relation, so the weight is
// fixed.
func (b *Builder) sharedRootEdges(ctx context.Context, es []models.Entity) ([]graph.Edge, error) {
	groups := make(map[string][]models.Entity)
	var order []string
	for _, e := range es {
		var roots []string
		for _, t := range e.Tags {
			if t.Type.IsCustom(b.cfg.RootTagKey) {
				roots = append(roots, t.Value)
			}
		}
		if len(roots) == 0 {
			continue
		}
		sort.Strings(roots)
		key := strings.Join(roots, "\x00")
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	var out []graph.Edge
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		roots := graph.Text(strings.ReplaceAll(key, "\x00", ", "))
		for i := range members {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for j := i + 1; j < len(members); j++ {
				out = append(out, graph.Edge{
					From:     members[i].ID,
					To:       members[j].ID,
					Kind:     graph.RelationSharedRoot,
					Weight:   b.cfg.SharedRootWeight,
					Metadata: graph.Metadata{"roots": roots},
				})
			}
		}
	}
	return out, nil
}

// geoEdges links every pair of entities that both have a coordinate, using
// the first coordinate-bearing tag of each.
func (b *Builder) geoEdges(ctx context.Context, es []models.Entity) ([]graph.Edge, error) {
	type located struct {
		id       string
		lat, lon float64
	}
	var pts []located
	for _, e := range es {
		if lat, lon, ok := e.FirstCoordinate(); ok {
			pts = append(pts, located{id: e.ID, lat: lat, lon: lon})
		}
	}

	var out []graph.Edge
	for i := range pts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(pts); j++ {
			d := Haversine(pts[i].lat, pts[i].lon, pts[j].lat, pts[j].lon)
			if math.IsNaN(d) || math.IsInf(d, 0) {
				continue
			}
			out = append(out, graph.Edge{
				From:     pts[i].id,
				To:       pts[j].id,
				Kind:     graph.RelationGeoProximity,
				Weight:   proximity(d, b.cfg.GeoMaxDistance),
				Metadata: graph.Metadata{"distance_m": graph.Number(d)},
			})
		}
	}
	return out, nil
}

func setKey(set map[string]struct{}) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}
