// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes relation graph queries for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tagweave/internal/apperr"
	"github.com/starford/tagweave/internal/graph"
	"github.com/starford/tagweave/internal/graphservice"
	"github.com/starford/tagweave/internal/models"
)

const entityFormatURI = "tagweave://entity-format"

// EntityLookup resolves an entity by id.
type EntityLookup interface {
	EntityByID(ctx context.Context, id string) (models.Entity, error)
}

// Server wraps the MCP server with graph tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *graphservice.Service
	entities EntityLookup
}

// New creates a new MCP server with all graph tools registered. The graph
// must be built (or being built) by the caller.
func New(svc *graphservice.Service, entities EntityLookup, version string) *Server {
	s := &Server{svc: svc, entities: entities}

	s.mcp = server.NewMCPServer(
		"tagweave",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTools(s.tools()...)

	s.mcp.AddResource(
		mcp.NewResource(entityFormatURI, "Entity Format",
			mcp.WithResourceDescription("Markdown entity file format and the relations derived from it."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntityFormatResource,
	)

	return s
}

// tools lists every tool the server registers, with its handler.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("graph_stats",
			mcp.WithDescription("Node and edge counts, average degree and edges per relation kind."),
		), Handler: s.graphStats},
		{Tool: mcp.NewTool("graph_neighbors",
			mcp.WithDescription("Distinct nodes directly connected to a node."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Node id (the entity id)")),
		), Handler: s.graphNeighbors},
		{Tool: mcp.NewTool("graph_connected",
			mcp.WithDescription("Nodes reachable from a node within a number of hops, in depth-first order."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Start node id")),
			mcp.WithNumber("depth", mcp.Description("Maximum hops, at least 1 (default 2)")),
		), Handler: s.graphConnected},
		{Tool: mcp.NewTool("graph_path",
			mcp.WithDescription("A path of nodes between two nodes, if one exists. "+
				"The path is not guaranteed to be the shortest."),
			mcp.WithString("from", mcp.Required(), mcp.Description("Start node id")),
			mcp.WithString("to", mcp.Required(), mcp.Description("End node id")),
		), Handler: s.graphPath},
		{Tool: mcp.NewTool("graph_strongest",
			mcp.WithDescription("Edges of a node ordered by descending weight."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 10, 0 for all)")),
		), Handler: s.graphStrongest},
		{Tool: mcp.NewTool("graph_clusters",
			mcp.WithDescription("Connected components with at least min_size nodes."),
			mcp.WithNumber("min_size", mcp.Description("Smallest cluster to report (default 2)")),
		), Handler: s.graphClusters},
		{Tool: mcp.NewTool("entity_get",
			mcp.WithDescription("Full entity record behind a node: text, phonetic, meaning and tags."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
		), Handler: s.entityGet},
		{Tool: mcp.NewTool("get_entity_format",
			mcp.WithDescription("Returns the Markdown entity file format the graph is built from."),
		), Handler: s.getEntityFormat},
	}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// toolError turns a service error into a tool-level error result. The hint,
// if any, tells the model how to recover.
func toolError(err error) *mcp.CallToolResult {
	msg := err.Error()
	if errors.Is(err, apperr.ErrGraphNotReady) {
		msg = "graph not ready"
	}
	if hint := apperr.Hint(err); hint != "" {
		msg += " (" + hint + ")"
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) graphStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Statistics(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(stats)
}

func (s *Server) graphNeighbors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := s.svc.Neighbors(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(nodeLines(nodes)), nil
}

func (s *Server) graphConnected(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := s.svc.Connected(ctx, id, req.GetInt("depth", 2))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(nodeLines(nodes)), nil
}

func (s *Server) graphPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, ok, err := s.svc.Path(ctx, from, to)
	if err != nil {
		return toolError(err), nil
	}
	if !ok {
		return mcp.NewToolResultText("no path found"), nil
	}
	ids := make([]string, len(path))
	for i, n := range path {
		ids[i] = n.ID
	}
	return mcp.NewToolResultText(strings.Join(ids, " -> ")), nil
}

func (s *Server) graphStrongest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conns, err := s.svc.Strongest(ctx, id, req.GetInt("limit", 10))
	if err != nil {
		return toolError(err), nil
	}
	if conns == nil {
		conns = []graph.Connection{}
	}
	return jsonResult(conns)
}

func (s *Server) graphClusters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clusters, err := s.svc.Clusters(ctx, req.GetInt("min_size", 2))
	if err != nil {
		return toolError(err), nil
	}
	if len(clusters) == 0 {
		return mcp.NewToolResultText("no clusters found"), nil
	}
	var b strings.Builder
	for i, c := range clusters {
		if i > 0 {
			b.WriteString("\n")
		}
		ids := make([]string, len(c))
		for j, n := range c {
			ids[j] = n.ID
		}
		b.WriteString(strings.Join(ids, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) entityGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.entities == nil {
		return mcp.NewToolResultError("entity lookup disabled"), nil
	}
	e, err := s.entities.EntityByID(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(e)
}

func (s *Server) getEntityFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntityFormatContract), nil
}

func (s *Server) readEntityFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      entityFormatURI,
			MIMEType: "text/markdown",
			Text:     EntityFormatContract,
		},
	}, nil
}

// nodeLines renders one "id\tlabel" line per node.
func nodeLines(nodes []graph.Node) string {
	if len(nodes) == 0 {
		return "no nodes found"
	}
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = n.ID + "\t" + n.Label
	}
	return strings.Join(lines, "\n")
}
