package layout

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Simulator advances the force-directed layout one tick at a time. It is
// not safe for concurrent use; Engine owns one on a single goroutine.
//
// Nodes without a position are seeded on a circle around the canvas center
// the next time the canvas is valid. Positions survive SetGraph for ids
// that remain in the graph.
type Simulator struct {
	cfg       Config
	rng       *rand.Rand
	lastValid Size

	ids      []string
	index    map[string]int
	adj      [][]int
	bodies   map[string]*Body
	pending  map[string]struct{}
	dragging map[string]Vec // id -> position when the drag began

	ticks uint64
}

// NewSimulator creates an empty simulator. The seed jitter comes from a
// PCG source seeded with cfg.Seed, so runs with equal inputs are
// reproducible.
func NewSimulator(cfg Config) *Simulator {
	s := &Simulator{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		index:    make(map[string]int),
		bodies:   make(map[string]*Body),
		pending:  make(map[string]struct{}),
		dragging: make(map[string]Vec),
	}
	if cfg.Canvas.Valid() {
		s.lastValid = cfg.Canvas
	}
	return s
}

// SetGraph replaces the node and link set. Bodies of removed ids are
// discarded and new ids are queued for seeding. Links naming unknown ids
// and self-links are ignored; parallel links each pull.
func (s *Simulator) SetGraph(ids []string, links []Link) {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for id := range s.bodies {
		if _, ok := seen[id]; !ok {
			delete(s.bodies, id)
			delete(s.dragging, id)
		}
	}
	for id := range s.pending {
		if _, ok := seen[id]; !ok {
			delete(s.pending, id)
		}
	}

	s.ids = sorted
	s.index = make(map[string]int, len(sorted))
	for i, id := range sorted {
		s.index[id] = i
		if _, ok := s.bodies[id]; !ok {
			s.pending[id] = struct{}{}
		}
	}

	s.adj = make([][]int, len(sorted))
	for _, l := range links {
		a, okA := s.index[l.From]
		b, okB := s.index[l.To]
		if !okA || !okB || a == b {
			continue
		}
		s.adj[a] = append(s.adj[a], b)
		s.adj[b] = append(s.adj[b], a)
	}

	s.seedPending()
}

// seedPending places queued nodes on a circle of radius
// SeedRadius·min(w,h) around the center, spaced by their rank among all
// ids, with a radial jitter in [0.5, 1.5].
func (s *Simulator) seedPending() {
	if len(s.pending) == 0 || !s.cfg.Canvas.Valid() {
		return
	}
	c := s.cfg.Canvas
	center := c.Center()
	radius := s.cfg.SeedRadius * math.Min(c.Width, c.Height)
	n := float64(len(s.ids))

	for i, id := range s.ids {
		if _, ok := s.pending[id]; !ok {
			continue
		}
		angle := 2 * math.Pi * float64(i) / n
		r := radius * (0.5 + s.rng.Float64())
		pos := center.Add(Vec{math.Cos(angle), math.Sin(angle)}.Scale(r))
		s.bodies[id] = &Body{Pos: s.clamp(pos)}
		delete(s.pending, id)
	}
}

// Step advances the simulation by one tick. Forces are computed from the
// positions at the start of the tick. Dragged nodes do not move but still
// repel and pull on the others. Step does nothing on an empty graph or an
// invalid canvas.
func (s *Simulator) Step() {
	if len(s.ids) == 0 || !s.cfg.Canvas.Valid() {
		return
	}
	s.seedPending()

	cfg := s.cfg
	center := cfg.Canvas.Center()
	pos := make([]Vec, len(s.ids))
	for i, id := range s.ids {
		pos[i] = s.bodies[id].Pos
	}

	forces := make([]Vec, len(s.ids))
	for i, id := range s.ids {
		if _, dragged := s.dragging[id]; dragged {
			continue
		}
		p := pos[i]
		f := center.Sub(p).Scale(cfg.CenterStrength)

		for j := range pos {
			if j == i {
				continue
			}
			d := p.Sub(pos[j])
			length := d.Len()
			var dir Vec
			if length == 0 {
				// Coincident nodes: push apart along x by rank.
				dir = Vec{1, 0}
				if i < j {
					dir = Vec{-1, 0}
				}
			} else {
				dir = d.Scale(1 / length)
			}
			dist := math.Max(length, 1)
			f = f.Add(dir.Scale(cfg.Repulsion / (dist * dist)))
		}

		for _, j := range s.adj[i] {
			d := pos[j].Sub(p)
			length := d.Len()
			if length == 0 {
				continue
			}
			stretch := (length - cfg.SpringLength) * cfg.SpringStrength
			f = f.Add(d.Scale(stretch / length))
		}
		forces[i] = f
	}

	for i, id := range s.ids {
		if _, dragged := s.dragging[id]; dragged {
			continue
		}
		b := s.bodies[id]
		b.Vel = b.Vel.Add(forces[i]).Scale(cfg.Damping)
		b.Pos = s.clamp(b.Pos.Add(b.Vel))
		if !b.Pos.isFinite() || !b.Vel.isFinite() {
			b.Pos, b.Vel = s.clamp(center), Vec{}
		}
	}
	s.ticks++
}

// clamp keeps p inside the canvas minus the node margin on both axes. If
// the canvas is too small for the margin, the axis is pinned to the center.
func (s *Simulator) clamp(p Vec) Vec {
	c := s.cfg.Canvas
	m := s.cfg.margin()
	return Vec{clampAxis(p.X, m, c.Width-m), clampAxis(p.Y, m, c.Height-m)}
}

func clampAxis(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Min(math.Max(v, lo), hi)
}

// Resize changes the canvas. Existing positions are rescaled from the last
// valid canvas so the relative layout survives; nothing is re-seeded.
func (s *Simulator) Resize(size Size) {
	s.cfg.Canvas = size
	if !size.Valid() {
		return
	}
	if s.lastValid.Valid() && s.lastValid != size {
		sx := size.Width / s.lastValid.Width
		sy := size.Height / s.lastValid.Height
		for id, b := range s.bodies {
			b.Pos = s.clamp(Vec{b.Pos.X * sx, b.Pos.Y * sy})
			if start, ok := s.dragging[id]; ok {
				s.dragging[id] = Vec{start.X * sx, start.Y * sy}
			}
		}
	}
	s.lastValid = size
	s.seedPending()
}

// BeginDrag takes id out of the physics loop. It reports false if the node
// has no position yet.
func (s *Simulator) BeginDrag(id string) bool {
	b, ok := s.bodies[id]
	if !ok {
		return false
	}
	s.dragging[id] = b.Pos
	b.Vel = Vec{}
	return true
}

// Drag moves a dragged node to its drag-start position plus translation.
func (s *Simulator) Drag(id string, translation Vec) bool {
	start, ok := s.dragging[id]
	if !ok {
		return false
	}
	s.bodies[id].Pos = s.clamp(start.Add(translation))
	return true
}

// EndDrag applies the final translation and returns the node to the
// physics loop at rest.
func (s *Simulator) EndDrag(id string, translation Vec) bool {
	if !s.Drag(id, translation) {
		return false
	}
	delete(s.dragging, id)
	s.bodies[id].Vel = Vec{}
	return true
}

// Dragging reports whether id is being dragged.
func (s *Simulator) Dragging(id string) bool {
	_, ok := s.dragging[id]
	return ok
}

// Positions returns a copy of every seeded position.
func (s *Simulator) Positions() map[string]Vec {
	out := make(map[string]Vec, len(s.bodies))
	for id, b := range s.bodies {
		out[id] = b.Pos
	}
	return out
}

// Body returns the state of one node.
func (s *Simulator) Body(id string) (Body, bool) {
	b, ok := s.bodies[id]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// Canvas returns the current canvas size.
func (s *Simulator) Canvas() Size { return s.cfg.Canvas }

// Ticks returns how many physics steps have run.
func (s *Simulator) Ticks() uint64 { return s.ticks }
