package layout

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Frame is an immutable snapshot of the layout published after each tick.
type Frame struct {
	Tick      uint64         `json:"tick"`
	Canvas    Size           `json:"canvas"`
	Positions map[string]Vec `json:"positions"`
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithFrameHook registers fn to be called from the engine goroutine after
// every published frame. fn must not block.
func WithFrameHook(fn func(Frame)) EngineOption {
	return func(e *Engine) { e.onFrame = fn }
}

// WithTickHook registers fn to be called once per physics tick.
func WithTickHook(fn func()) EngineOption {
	return func(e *Engine) { e.onTick = fn }
}

type command func(*Simulator)

// Engine runs a Simulator on a ticker.
//
// Concurrency model: Run's goroutine is the only owner of the simulator.
// Graph updates, resizes and drags are queued as commands and applied
// between ticks; readers get immutable frames through Snapshot.
type Engine struct {
	sim      *Simulator
	interval time.Duration
	logger   *slog.Logger
	onFrame  func(Frame)
	onTick   func()

	cmdCh   chan command
	frame   atomic.Pointer[Frame]
	stopped chan struct{}
	running atomic.Bool
}

// NewEngine creates an engine. Call Run to start ticking.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultConfig().TickInterval
	}
	e := &Engine{
		sim:      NewSimulator(cfg),
		interval: interval,
		logger:   slog.Default(),
		cmdCh:    make(chan command, 256),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.frame.Store(&Frame{Canvas: cfg.Canvas, Positions: map[string]Vec{}})
	return e
}

// Run ticks until ctx is cancelled. It never finishes on its own: a settled
// layout keeps ticking so dragged or new nodes can re-equilibrate.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return nil
	}
	defer close(e.stopped)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("layout: engine started", slog.Duration("interval", e.interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("layout: engine stopped", slog.Uint64("ticks", e.sim.Ticks()))
			return nil

		case cmd := <-e.cmdCh:
			cmd(e.sim)

		case <-ticker.C:
			before := e.sim.Ticks()
			e.sim.Step()
			if e.onTick != nil && e.sim.Ticks() != before {
				e.onTick()
			}
			e.publish()
		}
	}
}

func (e *Engine) publish() {
	f := &Frame{
		Tick:      e.sim.Ticks(),
		Canvas:    e.sim.Canvas(),
		Positions: e.sim.Positions(),
	}
	e.frame.Store(f)
	if e.onFrame != nil {
		e.onFrame(*f)
	}
}

func (e *Engine) send(cmd command) {
	select {
	case e.cmdCh <- cmd:
	case <-e.stopped:
	}
}

// Snapshot returns the latest published frame. Callers must not modify
// its Positions map.
func (e *Engine) Snapshot() Frame {
	return *e.frame.Load()
}

// SetGraph replaces the simulated nodes and links.
func (e *Engine) SetGraph(ids []string, links []Link) {
	e.send(func(s *Simulator) { s.SetGraph(ids, links) })
}

// Resize changes the canvas, rescaling existing positions.
func (e *Engine) Resize(size Size) {
	e.send(func(s *Simulator) { s.Resize(size) })
}

// BeginDrag pins id under the pointer.
func (e *Engine) BeginDrag(id string) {
	e.send(func(s *Simulator) {
		if !s.BeginDrag(id) {
			e.logger.Debug("layout: drag on unknown node", slog.String("id", id))
		}
	})
}

// Drag moves a dragged node by translation from where the drag began.
func (e *Engine) Drag(id string, translation Vec) {
	e.send(func(s *Simulator) { s.Drag(id, translation) })
}

// EndDrag releases a dragged node at its final translation.
func (e *Engine) EndDrag(id string, translation Vec) {
	e.send(func(s *Simulator) { s.EndDrag(id, translation) })
}

// Flush blocks until every command queued before it has been applied and
// a fresh frame published, or ctx is done.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})
	e.send(func(*Simulator) {
		e.publish()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}
