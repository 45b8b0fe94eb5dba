package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tagweave/internal/graph"
	"github.com/starford/tagweave/internal/graphservice"
	"github.com/starford/tagweave/internal/layout"
)

// NodesResponse wraps a node list.
type NodesResponse struct {
	Nodes []graph.Node `json:"nodes" validate:"required"`
}

// ConnectionsResponse wraps the strongest connections of a node.
type ConnectionsResponse struct {
	Connections []graph.Connection `json:"connections" validate:"required"`
}

// PathResponse is the result of a path search. Nodes is empty when Found is
// false.
type PathResponse struct {
	Found bool         `json:"found" example:"true"`
	Nodes []graph.Node `json:"nodes" validate:"required"`
}

// ClustersResponse wraps connected components.
type ClustersResponse struct {
	Clusters [][]graph.Node `json:"clusters" validate:"required"`
}

// GraphResponse is the exported graph.
type GraphResponse = graph.Export

// StatsResponse summarizes the published graph.
type StatsResponse = graph.Stats

// BuildStateResponse reports rebuild bookkeeping.
type BuildStateResponse = graphservice.BuildState

// BuildInfoResponse describes a published graph.
type BuildInfoResponse = graphservice.BuildInfo

// FrameResponse is the latest layout frame.
type FrameResponse = layout.Frame

// CanvasRequest sets the layout canvas size.
type CanvasRequest struct {
	Width  float64 `json:"width" example:"1280" validate:"required"`
	Height float64 `json:"height" example:"720" validate:"required"`
}

// DragRequest carries a pointer translation from where the drag began.
type DragRequest struct {
	X float64 `json:"x" example:"12.5"`
	Y float64 `json:"y" example:"-4"`
}

// Validate rejects negative sizes. A zero side is allowed and pauses the
// layout.
func (r CanvasRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Width, validation.Min(0.0)),
		validation.Field(&r.Height, validation.Min(0.0)),
	)
}
