// Package metrics exposes Prometheus metrics for graph builds and the
// layout loop on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Build results recorded by ObserveBuild.
const (
	ResultOK         = "ok"
	ResultSuperseded = "superseded"
	ResultError      = "error"
)

// Collector holds every metric the service records. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	BuildDuration prometheus.Histogram
	Builds        *prometheus.CounterVec
	Nodes         prometheus.Gauge
	Edges         *prometheus.GaugeVec
	LayoutTicks   prometheus.Counter
	FramesDropped prometheus.Counter
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Time spent building the relation graph",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_builds_total",
			Help:      "Graph builds by result",
		}, []string{"result"}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the published graph",
		}),
		Edges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the published graph by relation kind",
		}, []string{"kind"}),
		LayoutTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_ticks_total",
			Help:      "Physics steps run by the layout engine",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_frames_dropped_total",
			Help:      "Layout frames not broadcast because of the frame rate limit",
		}),
	}

	registry.MustRegister(
		c.BuildDuration,
		c.Builds,
		c.Nodes,
		c.Edges,
		c.LayoutTicks,
		c.FramesDropped,
		collectors.NewGoCollector(),
	)
	return c
}

// ObserveBuild records one finished build attempt.
func (c *Collector) ObserveBuild(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Builds.WithLabelValues(result).Inc()
	if result == ResultOK {
		c.BuildDuration.Observe(d.Seconds())
	}
}

// SetGraphSize records the size of the published graph.
func (c *Collector) SetGraphSize(nodes int, edgesByKind map[string]int) {
	if c == nil {
		return
	}
	c.Nodes.Set(float64(nodes))
	c.Edges.Reset()
	for kind, n := range edgesByKind {
		c.Edges.WithLabelValues(kind).Set(float64(n))
	}
}

// Tick counts one layout step.
func (c *Collector) Tick() {
	if c == nil {
		return
	}
	c.LayoutTicks.Inc()
}

// FrameDropped counts one throttled layout frame.
func (c *Collector) FrameDropped() {
	if c == nil {
		return
	}
	c.FramesDropped.Inc()
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
