package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tagweave/internal/apperr"
	"github.com/starford/tagweave/internal/builder"
	"github.com/starford/tagweave/internal/graphservice"
	"github.com/starford/tagweave/internal/layout"
	"github.com/starford/tagweave/internal/models"
)

func words() []models.Entity {
	return []models.Entity{
		{ID: "a", Text: "color"},
		{ID: "b", Text: "colour"},
		{ID: "dir/c", Text: "quantum", Meaning: "smallest amount"},
	}
}

type entityMap map[string]models.Entity

func (m entityMap) EntityByID(_ context.Context, id string) (models.Entity, error) {
	e, ok := m[id]
	if !ok {
		return models.Entity{}, apperr.NotFoundf("entity %q", id)
	}
	return e, nil
}

type testEnv struct {
	svc    *graphservice.Service
	router http.Handler
}

type envOptions struct {
	token  string
	build  bool
	layout *layout.Engine
	sse    http.Handler
}

func newEnv(t *testing.T, o envOptions) testEnv {
	t.Helper()
	es := words()
	lookup := entityMap{}
	for _, e := range es {
		lookup[e.ID] = e
	}
	src := graphservice.EntitySourceFunc(func(context.Context) ([]models.Entity, error) {
		return es, nil
	})
	var opts []graphservice.Option
	if o.layout != nil {
		opts = append(opts, graphservice.WithLayout(o.layout))
	}
	svc := graphservice.New(src, builder.New(builder.DefaultConfig()), opts...)
	if o.build {
		_, err := svc.Rebuild(context.Background())
		require.NoError(t, err)
	}
	h := NewHandler(svc, lookup, nil)
	return testEnv{svc: svc, router: NewRouter(h, o.token != "", o.token, o.sse)}
}

func (e testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func ids(nodes []map[string]any) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n["id"].(string))
	}
	return out
}

func TestGraphNotReady(t *testing.T) {
	env := newEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/graph/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[errResponse](t, w)
	assert.Equal(t, "graph not ready", body.Error)
	assert.NotEmpty(t, body.Hint)

	w = env.do(t, http.MethodGet, "/graph/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "empty", decode[map[string]any](t, w)["status"])
}

func TestRebuildEndpoint(t *testing.T) {
	env := newEnv(t, envOptions{})

	w := env.do(t, http.MethodPost, "/graph/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := decode[map[string]any](t, w)
	assert.EqualValues(t, 3, info["nodes"])
	assert.EqualValues(t, 1, info["edges"])

	w = env.do(t, http.MethodGet, "/graph/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]any](t, w)
	assert.EqualValues(t, 3, stats["node_count"])
	assert.EqualValues(t, 1, stats["edge_count"])
}

func TestGraphExport(t *testing.T) {
	env := newEnv(t, envOptions{build: true})

	w := env.do(t, http.MethodGet, "/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exp := decode[struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}](t, w)
	assert.Len(t, exp.Nodes, 3)
	assert.Len(t, exp.Edges, 1)

	w = env.do(t, http.MethodGet, "/graph?kinds=geo-proximity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exp = decode[struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}](t, w)
	assert.Empty(t, exp.Edges)

	w = env.do(t, http.MethodGet, "/graph?kinds=friendship", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode[errResponse](t, w).Hint)
}

func TestNeighborsAndConnected(t *testing.T) {
	env := newEnv(t, envOptions{build: true})

	w := env.do(t, http.MethodGet, "/nodes/a/neighbors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"b"}, ids(decode[struct {
		Nodes []map[string]any `json:"nodes"`
	}](t, w).Nodes))

	// Nested ids are sent with an encoded slash.
	w = env.do(t, http.MethodGet, "/nodes/dir%2Fc/neighbors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"nodes":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/nodes/a/connected?depth=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"b"}, ids(decode[struct {
		Nodes []map[string]any `json:"nodes"`
	}](t, w).Nodes))

	w = env.do(t, http.MethodGet, "/nodes/a/connected?depth=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/nodes/a/connected?depth=two", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/nodes/zzz/neighbors", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[errResponse](t, w).Error, `"zzz"`)
}

func TestStrongest(t *testing.T) {
	env := newEnv(t, envOptions{build: true})

	w := env.do(t, http.MethodGet, "/nodes/b/strongest?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Connections []struct {
			Node   map[string]any `json:"node"`
			Weight float64        `json:"weight"`
			Kind   string         `json:"kind"`
		} `json:"connections"`
	}](t, w)
	require.Len(t, body.Connections, 1)
	assert.Equal(t, "a", body.Connections[0].Node["id"])
	assert.Equal(t, "similarity", body.Connections[0].Kind)
	assert.Greater(t, body.Connections[0].Weight, 0.7)

	w = env.do(t, http.MethodGet, "/nodes/dir%2Fc/strongest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connections":[]}`, w.Body.String())
}

func TestPathEndpoint(t *testing.T) {
	env := newEnv(t, envOptions{build: true})

	w := env.do(t, http.MethodGet, "/path?from=a&to=b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[struct {
		Found bool             `json:"found"`
		Nodes []map[string]any `json:"nodes"`
	}](t, w)
	assert.True(t, found.Found)
	assert.Equal(t, []string{"a", "b"}, ids(found.Nodes))

	w = env.do(t, http.MethodGet, "/path?from=a&to=dir/c", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"found":false,"nodes":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/path?from=a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/path?from=a&to=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClusters(t *testing.T) {
	env := newEnv(t, envOptions{build: true})

	w := env.do(t, http.MethodGet, "/clusters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[struct {
		Clusters [][]map[string]any `json:"clusters"`
	}](t, w)
	assert.Len(t, all.Clusters, 2)

	w = env.do(t, http.MethodGet, "/clusters?min_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	big := decode[struct {
		Clusters [][]map[string]any `json:"clusters"`
	}](t, w)
	require.Len(t, big.Clusters, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, ids(big.Clusters[0]))

	w = env.do(t, http.MethodGet, "/clusters?min_size=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntityEndpoint(t *testing.T) {
	env := newEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/entities/dir%2Fc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	e := decode[models.Entity](t, w)
	assert.Equal(t, "quantum", e.Text)
	assert.Equal(t, "smallest amount", e.Meaning)

	w = env.do(t, http.MethodGet, "/entities/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLayoutDisabled(t *testing.T) {
	env := newEnv(t, envOptions{build: true})

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/layout", nil).Code)
	// Drags still validate the node even without an engine.
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/layout/drag/a/begin", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/layout/drag/nope/begin", nil).Code)
}

func TestLayoutEndpoints(t *testing.T) {
	cfg := layout.DefaultConfig()
	cfg.TickInterval = time.Millisecond
	engine := layout.NewEngine(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = engine.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	env := newEnv(t, envOptions{build: true, layout: engine})
	require.NoError(t, engine.Flush(context.Background()))

	w := env.do(t, http.MethodGet, "/layout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	frame := decode[layout.Frame](t, w)
	assert.Len(t, frame.Positions, 3)
	assert.Contains(t, frame.Positions, "dir/c")

	w = env.do(t, http.MethodPut, "/layout/canvas", CanvasRequest{Width: 400, Height: 300})
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NoError(t, engine.Flush(context.Background()))
	assert.Equal(t, layout.Size{Width: 400, Height: 300}, engine.Snapshot().Canvas)

	w = env.do(t, http.MethodPut, "/layout/canvas", CanvasRequest{Width: -1, Height: 300})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/layout/drag/a/begin", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodPost, "/layout/drag/a/move", DragRequest{X: 10, Y: 5})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodPost, "/layout/drag/a/end", DragRequest{X: 12, Y: 5})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodPost, "/layout/drag/a/move", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newEnv(t, envOptions{token: "secret", build: true})

	req := httptest.NewRequest(http.MethodGet, "/graph/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newEnv(t, envOptions{token: "secret", build: true})
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/graph", nil).Code)
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newEnv(t, envOptions{token: "secret", build: true})

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	sse := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	})
	env := newEnv(t, envOptions{token: "tok", sse: sse})

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/events", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}
