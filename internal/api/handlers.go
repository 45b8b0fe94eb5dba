package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tagweave/internal/apperr"
	"github.com/starford/tagweave/internal/graph"
	"github.com/starford/tagweave/internal/graphservice"
	"github.com/starford/tagweave/internal/layout"
	"github.com/starford/tagweave/internal/models"
)

// EntityLookup resolves an entity by id.
type EntityLookup interface {
	EntityByID(ctx context.Context, id string) (models.Entity, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc      *graphservice.Service
	entities EntityLookup
	logger   *slog.Logger
}

// NewHandler creates a Handler. entities may be nil, which disables
// GET /entities/{id}.
func NewHandler(svc *graphservice.Service, entities EntityLookup, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, entities: entities, logger: logger}
}

// pathID returns the {id} URL parameter. Ids derived from nested vault
// paths contain slashes, which clients send encoded as %2F.
func pathID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.Invalidf("", "%s must be an integer", name)
	}
	return n, nil
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported as 500 without detail.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error(), Hint: apperr.Hint(err)})
	case errors.Is(err, apperr.ErrGraphNotReady):
		writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: "graph not ready", Hint: apperr.Hint(err)})
	case errors.Is(err, apperr.ErrSuperseded):
		writeJSON(w, http.StatusConflict, errorBody("a newer rebuild replaced this one"))
	case errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("request cancelled"))
	default:
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Graph handles GET /graph.
//
//	@Summary		Export the relation graph
//	@Tags			graph
//	@Produce		json
//	@Param			kinds	query		string	false	"Comma-separated relation kinds to keep"
//	@Success		200		{object}	GraphResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	var kinds []graph.RelationKind
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			k, ok := graph.ParseRelationKind(strings.TrimSpace(s))
			if !ok {
				h.writeError(w, "graph", apperr.Invalidf("one of similarity, tag-overlap, shared-root, geo-proximity, custom", "unknown relation kind %q", s))
				return
			}
			kinds = append(kinds, k)
		}
	}
	exp, err := h.svc.Export(r.Context(), kinds...)
	if err != nil {
		h.writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// Stats handles GET /graph/stats.
//
//	@Summary		Graph statistics
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		h.writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// State handles GET /graph/state.
//
//	@Summary		Rebuild status
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	BuildStateResponse
//	@Security		BearerAuth
//	@Router			/graph/state [get]
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State())
}

// Rebuild handles POST /graph/rebuild.
//
//	@Summary		Rebuild the graph now
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	BuildInfoResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Rebuild(r.Context())
	if err != nil {
		h.writeError(w, "rebuild", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Neighbors handles GET /nodes/{id}/neighbors.
//
//	@Summary		Distinct neighbors of a node
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	NodesResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/neighbors [get]
func (h *Handler) Neighbors(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Neighbors(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, "neighbors", err)
		return
	}
	writeJSON(w, http.StatusOK, NodesResponse{Nodes: nonNil(nodes)})
}

// Connected handles GET /nodes/{id}/connected.
//
//	@Summary		Nodes within a number of hops
//	@Tags			nodes
//	@Produce		json
//	@Param			id		path		string	true	"Node id"
//	@Param			depth	query		int		false	"Maximum hops (default 1)"
//	@Success		200		{object}	NodesResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/connected [get]
func (h *Handler) Connected(w http.ResponseWriter, r *http.Request) {
	depth, err := intQuery(r, "depth", 1)
	if err != nil {
		h.writeError(w, "connected", err)
		return
	}
	nodes, err := h.svc.Connected(r.Context(), pathID(r), depth)
	if err != nil {
		h.writeError(w, "connected", err)
		return
	}
	writeJSON(w, http.StatusOK, NodesResponse{Nodes: nonNil(nodes)})
}

// Strongest handles GET /nodes/{id}/strongest.
//
//	@Summary		Incident edges by descending weight
//	@Tags			nodes
//	@Produce		json
//	@Param			id		path		string	true	"Node id"
//	@Param			limit	query		int		false	"Maximum results, 0 for all"
//	@Success		200		{object}	ConnectionsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/strongest [get]
func (h *Handler) Strongest(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		h.writeError(w, "strongest", err)
		return
	}
	conns, err := h.svc.Strongest(r.Context(), pathID(r), limit)
	if err != nil {
		h.writeError(w, "strongest", err)
		return
	}
	if conns == nil {
		conns = []graph.Connection{}
	}
	writeJSON(w, http.StatusOK, ConnectionsResponse{Connections: conns})
}

// Path handles GET /path.
//
//	@Summary		Find a path between two nodes
//	@Tags			nodes
//	@Produce		json
//	@Param			from	query		string	true	"Start node id"
//	@Param			to		query		string	true	"End node id"
//	@Success		200		{object}	PathResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/path [get]
func (h *Handler) Path(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		h.writeError(w, "path", apperr.Invalidf("", "from and to are required"))
		return
	}
	nodes, found, err := h.svc.Path(r.Context(), from, to)
	if err != nil {
		h.writeError(w, "path", err)
		return
	}
	writeJSON(w, http.StatusOK, PathResponse{Found: found, Nodes: nonNil(nodes)})
}

// Clusters handles GET /clusters.
//
//	@Summary		Connected components
//	@Tags			graph
//	@Produce		json
//	@Param			min_size	query		int	false	"Smallest cluster to report (default 1)"
//	@Success		200			{object}	ClustersResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/clusters [get]
func (h *Handler) Clusters(w http.ResponseWriter, r *http.Request) {
	minSize, err := intQuery(r, "min_size", 1)
	if err != nil {
		h.writeError(w, "clusters", err)
		return
	}
	clusters, err := h.svc.Clusters(r.Context(), minSize)
	if err != nil {
		h.writeError(w, "clusters", err)
		return
	}
	if clusters == nil {
		clusters = [][]graph.Node{}
	}
	writeJSON(w, http.StatusOK, ClustersResponse{Clusters: clusters})
}

// Entity handles GET /entities/{id}.
//
//	@Summary		Get the entity behind a node
//	@Tags			entities
//	@Produce		json
//	@Param			id	path		string	true	"Entity id"
//	@Success		200	{object}	models.Entity
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{id} [get]
func (h *Handler) Entity(w http.ResponseWriter, r *http.Request) {
	if h.entities == nil {
		writeJSON(w, http.StatusNotFound, errorBody("entity lookup disabled"))
		return
	}
	e, err := h.entities.EntityByID(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, "entity", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Layout handles GET /layout.
//
//	@Summary		Latest layout frame
//	@Tags			layout
//	@Produce		json
//	@Success		200	{object}	FrameResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layout [get]
func (h *Handler) Layout(w http.ResponseWriter, _ *http.Request) {
	frame, ok := h.svc.Layout()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("layout disabled"))
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// Canvas handles PUT /layout/canvas.
//
//	@Summary		Resize the layout canvas
//	@Tags			layout
//	@Accept			json
//	@Param			body	body	CanvasRequest	true	"Canvas size"
//	@Success		204		"Resize queued"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layout/canvas [put]
func (h *Handler) Canvas(w http.ResponseWriter, r *http.Request) {
	var req CanvasRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.svc.Resize(layout.Size{Width: req.Width, Height: req.Height})
	w.WriteHeader(http.StatusNoContent)
}

// DragBegin handles POST /layout/drag/{id}/begin.
//
//	@Summary		Pin a node under the pointer
//	@Tags			layout
//	@Param			id	path	string	true	"Node id"
//	@Success		204	"Drag started"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layout/drag/{id}/begin [post]
func (h *Handler) DragBegin(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DragBegin(r.Context(), pathID(r)); err != nil {
		h.writeError(w, "drag begin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DragMove handles POST /layout/drag/{id}/move.
//
//	@Summary		Move a dragged node
//	@Tags			layout
//	@Accept			json
//	@Param			id		path	string		true	"Node id"
//	@Param			body	body	DragRequest	true	"Translation from the drag start"
//	@Success		204		"Moved"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layout/drag/{id}/move [post]
func (h *Handler) DragMove(w http.ResponseWriter, r *http.Request) {
	var req DragRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.DragChange(r.Context(), pathID(r), layout.Vec{X: req.X, Y: req.Y}); err != nil {
		h.writeError(w, "drag move", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DragEnd handles POST /layout/drag/{id}/end.
//
//	@Summary		Release a dragged node
//	@Tags			layout
//	@Accept			json
//	@Param			id		path	string		true	"Node id"
//	@Param			body	body	DragRequest	true	"Final translation from the drag start"
//	@Success		204		"Released"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layout/drag/{id}/end [post]
func (h *Handler) DragEnd(w http.ResponseWriter, r *http.Request) {
	var req DragRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.DragEnd(r.Context(), pathID(r), layout.Vec{X: req.X, Y: req.Y}); err != nil {
		h.writeError(w, "drag end", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func nonNil(nodes []graph.Node) []graph.Node {
	if nodes == nil {
		return []graph.Node{}
	}
	return nodes
}
