// Package graphservice owns the published relation graph: it rebuilds it
// from the entity store, swaps it in atomically and answers queries
// against whichever graph is current.
package graphservice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/starford/tagweave/internal/apperr"
	"github.com/starford/tagweave/internal/builder"
	"github.com/starford/tagweave/internal/checksum"
	"github.com/starford/tagweave/internal/graph"
	"github.com/starford/tagweave/internal/layout"
	"github.com/starford/tagweave/internal/metrics"
	"github.com/starford/tagweave/internal/models"
)

// EntitySource returns a consistent snapshot of every entity.
type EntitySource interface {
	Entities(ctx context.Context) ([]models.Entity, error)
}

// EntitySourceFunc adapts a function to EntitySource.
type EntitySourceFunc func(ctx context.Context) ([]models.Entity, error)

// Entities implements EntitySource.
func (f EntitySourceFunc) Entities(ctx context.Context) ([]models.Entity, error) { return f(ctx) }

// BuildInfo describes a published graph.
type BuildInfo struct {
	ID          string        `json:"id"`
	Generation  uint64        `json:"generation"`
	Fingerprint string        `json:"fingerprint"`
	Entities    int           `json:"entities"`
	Nodes       int           `json:"nodes"`
	Edges       int           `json:"edges"`
	Duration    time.Duration `json:"duration_ns"`
	BuiltAt     time.Time     `json:"built_at"`
}

// Status is the lifecycle state of the service.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusBuilding Status = "building"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// BuildState is a point-in-time view of the build bookkeeping.
type BuildState struct {
	Status     Status     `json:"status"`
	LastBuild  *BuildInfo `json:"last_build,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Builds     uint64     `json:"builds"`
	Superseded uint64     `json:"superseded"`
}

type published struct {
	graph *graph.RelationGraph
	info  BuildInfo
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records build metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithLayout pushes every published graph to e. e must be running.
func WithLayout(e *layout.Engine) Option {
	return func(s *Service) { s.layout = e }
}

// WithOnRebuild registers fn to be called after each publish.
func WithOnRebuild(fn func(BuildInfo)) Option {
	return func(s *Service) { s.onRebuild = fn }
}

// WithDebounce sets how long Run waits after the last Invalidate before
// rebuilding.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) { s.debounce = d }
}

// Service is safe for concurrent use. Readers never block on a build; they
// keep seeing the previous graph until the new one is swapped in.
type Service struct {
	source    EntitySource
	builder   *builder.Builder
	logger    *slog.Logger
	metrics   *metrics.Collector
	layout    *layout.Engine
	onRebuild func(BuildInfo)
	debounce  time.Duration

	current atomic.Pointer[published]
	dirty   chan struct{}

	mu     sync.Mutex // guards the fields below
	gen    uint64
	cancel context.CancelFunc
	state  BuildState
}

// New creates a service. No graph is available until the first Rebuild.
func New(source EntitySource, b *builder.Builder, opts ...Option) *Service {
	s := &Service{
		source:   source,
		builder:  b,
		logger:   slog.Default(),
		debounce: 250 * time.Millisecond,
		dirty:    make(chan struct{}, 1),
		state:    BuildState{Status: StatusEmpty},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rebuild snapshots the entities, builds a graph and publishes it. Starting
// a rebuild cancels any build still in flight; a build that finishes after
// a newer one started is discarded with apperr.ErrSuperseded.
func (s *Service) Rebuild(ctx context.Context) (BuildInfo, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	buildCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Status = StatusBuilding
	s.mu.Unlock()
	defer cancel()

	start := time.Now()
	entities, err := s.source.Entities(buildCtx)
	var g *graph.RelationGraph
	if err == nil {
		g, err = s.builder.Build(buildCtx, entities)
	}
	elapsed := time.Since(start)

	s.mu.Lock()
	if gen != s.gen {
		s.state.Superseded++
		s.mu.Unlock()
		s.metrics.ObserveBuild(metrics.ResultSuperseded, elapsed)
		s.logger.Debug("graphservice: build superseded", slog.Uint64("generation", gen))
		return BuildInfo{}, errors.Wrapf(apperr.ErrSuperseded, "generation %d", gen)
	}
	s.cancel = nil

	if err != nil && ctx.Err() != nil {
		// The caller gave up; the published graph is still current.
		s.state.Status = StatusEmpty
		if s.current.Load() != nil {
			s.state.Status = StatusReady
		}
		s.mu.Unlock()
		return BuildInfo{}, errors.Wrap(ctx.Err(), "rebuild graph")
	}
	if err != nil {
		s.state.Status = StatusFailed
		s.state.LastError = err.Error()
		s.mu.Unlock()
		s.metrics.ObserveBuild(metrics.ResultError, elapsed)
		s.logger.Error("graphservice: build failed", slog.String("error", err.Error()))
		return BuildInfo{}, errors.Wrap(err, "rebuild graph")
	}

	stats := g.Statistics()
	info := BuildInfo{
		ID:          uuid.NewString(),
		Generation:  gen,
		Fingerprint: checksum.Entities(entities),
		Entities:    len(entities),
		Nodes:       stats.NodeCount,
		Edges:       stats.EdgeCount,
		Duration:    elapsed,
		BuiltAt:     time.Now().UTC(),
	}
	s.current.Store(&published{graph: g, info: info})
	s.state.Status = StatusReady
	s.state.LastError = ""
	s.state.LastBuild = &info
	s.state.Builds++
	if s.layout != nil {
		// Pushed under the lock so the engine sees graphs in publish order.
		s.layout.SetGraph(g.NodeIDs(), links(g))
	}
	s.mu.Unlock()

	byKind := make(map[string]int, len(stats.EdgesByKind))
	for k, n := range stats.EdgesByKind {
		byKind[string(k)] = n
	}
	s.metrics.ObserveBuild(metrics.ResultOK, elapsed)
	s.metrics.SetGraphSize(stats.NodeCount, byKind)

	s.logger.Info("graphservice: graph published",
		slog.String("build_id", info.ID),
		slog.Int("nodes", info.Nodes),
		slog.Int("edges", info.Edges),
		slog.Duration("took", elapsed))
	if s.onRebuild != nil {
		s.onRebuild(info)
	}
	return info, nil
}

func links(g *graph.RelationGraph) []layout.Link {
	edges := g.Edges()
	out := make([]layout.Link, len(edges))
	for i, e := range edges {
		out[i] = layout.Link{From: e.From, To: e.To}
	}
	return out
}

// Invalidate marks the entities as changed. Run rebuilds once no further
// Invalidate has arrived for the debounce period.
func (s *Service) Invalidate() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Run performs the initial build, then rebuilds on Invalidate until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.Rebuild(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("graphservice: initial build failed", slog.String("error", err.Error()))
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-s.dirty:
			if timer == nil {
				timer = time.NewTimer(s.debounce)
				fire = timer.C
			} else {
				timer.Reset(s.debounce)
			}

		case <-fire:
			if _, err := s.Rebuild(ctx); err != nil && !errors.Is(err, apperr.ErrSuperseded) && ctx.Err() == nil {
				s.logger.Warn("graphservice: rebuild failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Graph returns the published graph, or nil before the first build.
func (s *Service) Graph() *graph.RelationGraph {
	p := s.current.Load()
	if p == nil {
		return nil
	}
	return p.graph
}

// State returns the build bookkeeping.
func (s *Service) State() BuildState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.LastBuild != nil {
		info := *st.LastBuild
		st.LastBuild = &info
	}
	return st
}

func (s *Service) ready(ctx context.Context) (*graph.RelationGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := s.Graph()
	if g == nil {
		return nil, errors.WithHint(apperr.ErrGraphNotReady, "trigger a rebuild or wait for the first build")
	}
	return g, nil
}

func (s *Service) node(ctx context.Context, id string) (*graph.RelationGraph, error) {
	g, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if !g.HasNode(id) {
		return nil, apperr.NotFoundf("node %q", id)
	}
	return g, nil
}
