// Package layout lays a graph out in two dimensions with a force-directed
// simulation that runs for as long as the graph is shown.
package layout

import (
	"math"
	"time"
)

// Vec is a 2D point or vector.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(f float64) Vec { return Vec{v.X * f, v.Y * f} }
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec) isFinite() bool { return finite(v.X) && finite(v.Y) }
func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Size is the canvas size. A size with a non-positive side is not valid and
// pauses the simulation.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both sides are positive.
func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

// Center returns the middle of the canvas.
func (s Size) Center() Vec { return Vec{s.Width / 2, s.Height / 2} }

// Link is an undirected spring between two nodes.
type Link struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Body is the physical state of one node.
type Body struct {
	Pos Vec `json:"pos"`
	Vel Vec `json:"vel"`
}

// Config holds the physics constants and canvas.
type Config struct {
	Canvas         Size
	NodeRadius     float64
	Padding        float64
	CenterStrength float64
	Repulsion      float64
	SpringLength   float64
	SpringStrength float64
	Damping        float64
	SeedRadius     float64 // fraction of min(width, height)
	Seed           uint64
	TickInterval   time.Duration
}

// DefaultConfig returns the standard constants on an 800x600 canvas.
func DefaultConfig() Config {
	return Config{
		Canvas:         Size{Width: 800, Height: 600},
		NodeRadius:     20,
		Padding:        10,
		CenterStrength: 0.005,
		Repulsion:      8000,
		SpringLength:   180,
		SpringStrength: 0.08,
		Damping:        0.85,
		SeedRadius:     0.3,
		Seed:           1,
		TickInterval:   8 * time.Millisecond,
	}
}

// margin is the distance kept between a node center and the canvas edge.
func (c Config) margin() float64 { return c.NodeRadius + c.Padding }
