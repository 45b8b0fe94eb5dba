package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Whole graph.
	r.Get("/graph", h.Graph)
	r.Get("/graph/stats", h.Stats)
	r.Get("/graph/state", h.State)
	r.Post("/graph/rebuild", h.Rebuild)

	// Per-node queries.
	r.Get("/nodes/{id}/neighbors", h.Neighbors)
	r.Get("/nodes/{id}/connected", h.Connected)
	r.Get("/nodes/{id}/strongest", h.Strongest)
	r.Get("/path", h.Path)
	r.Get("/clusters", h.Clusters)
	r.Get("/entities/{id}", h.Entity)

	// Layout.
	r.Get("/layout", h.Layout)
	r.Put("/layout/canvas", h.Canvas)
	r.Post("/layout/drag/{id}/begin", h.DragBegin)
	r.Post("/layout/drag/{id}/move", h.DragMove)
	r.Post("/layout/drag/{id}/end", h.DragEnd)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
