// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tagweave/internal/api"
	"github.com/starford/tagweave/internal/builder"
	"github.com/starford/tagweave/internal/graphservice"
	"github.com/starford/tagweave/internal/index"
	"github.com/starford/tagweave/internal/layout"
	"github.com/starford/tagweave/internal/mcpserver"
	"github.com/starford/tagweave/internal/metrics"
	"github.com/starford/tagweave/internal/models"
	"github.com/starford/tagweave/internal/sse"
	"github.com/starford/tagweave/internal/storage"
)

// stack holds every long-lived component. It is assembled once by
// newStack and torn down by close. The layout engine is only attached when
// withLayout is set, since nothing drains its command queue otherwise.
type stack struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	db      *index.DB
	metrics *metrics.Collector
	engine  *layout.Engine
	broker  *sse.Broker
	svc     *graphservice.Service
}

func newStack(cfg *Config, logger *slog.Logger, withLayout bool) (*stack, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	s := &stack{cfg: cfg, logger: logger, store: store, db: db}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	// A nil collector is a no-op, so the hooks need no guards.
	s.broker = sse.NewBroker(cfg.Layout.FrameRate, sse.WithFrameDropHook(s.metrics.FrameDropped))

	svcOpts := []graphservice.Option{
		graphservice.WithLogger(logger.With(slog.String("component", "graphservice"))),
		graphservice.WithMetrics(s.metrics),
		graphservice.WithDebounce(cfg.Rebuild.Debounce),
		graphservice.WithOnRebuild(func(info graphservice.BuildInfo) {
			s.broker.PublishRebuilt(info)
		}),
	}
	if withLayout && cfg.Layout.Enabled {
		s.engine = layout.NewEngine(cfg.Layout.EngineConfig(),
			layout.WithEngineLogger(logger.With(slog.String("component", "layout"))),
			layout.WithFrameHook(s.broker.PublishFrame),
			layout.WithTickHook(s.metrics.Tick),
		)
		svcOpts = append(svcOpts, graphservice.WithLayout(s.engine))
	}

	b := builder.New(cfg.Graph.BuilderConfig(),
		builder.WithLogger(logger.With(slog.String("component", "builder"))),
		builder.WithScorer(cfg.Graph.Scorer()),
		builder.WithTagNamer(models.DefaultTagNamer{}),
	)
	s.svc = graphservice.New(db, b, svcOpts...)
	return s, nil
}

func (s *stack) close() {
	s.broker.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}

// sync reconciles the index with the vault before anything reads it.
func (s *stack) sync() {
	res, err := index.Sync(s.db, s.store, s.logger)
	if err != nil {
		s.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("initial sync done",
		slog.Int("indexed", res.Indexed),
		slog.Int("removed", res.Removed),
		slog.Int("failed", res.Failed))
}

// watch keeps the index current and marks the graph dirty on every change.
func (s *stack) watch(ctx context.Context, publish bool) error {
	return index.Watch(ctx, s.db, s.store, s.cfg.Vault.Path, s.logger, func(kind, path string) {
		if publish {
			s.broker.PublishEntityEvent(kind, path)
		}
		s.svc.Invalidate()
	})
}

// router mounts health checks, the API under /api and, when enabled,
// Prometheus metrics.
func (s *stack) router() http.Handler {
	h := api.NewHandler(s.svc, s.db, s.logger.With(slog.String("component", "api")))
	apiRouter := api.NewRouter(h, s.cfg.Auth.AuthEnabled(), s.cfg.Auth.Token, s.broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.svc.Graph() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Mount("/api", apiRouter)
	return r
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// MCP speaks JSON-RPC on stdout, so logs go to stderr in that mode.
	var logOut io.Writer = os.Stdout
	if app.mode == ModeMCP {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("layout", cfg.Layout.Enabled),
		slog.Bool("metrics", cfg.Metrics.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	s, err := newStack(cfg, logger, app.mode == ModeServe)
	if err != nil {
		return err
	}
	defer s.close()

	s.sync()

	if app.mode == ModeMCP {
		return runMCP(ctx, s, mcpserver.New(s.svc, s.db, app.version).ServeStdio)
	}
	return serve(ctx, s)
}

// runMCP keeps the graph current in the background while serveStdio
// answers tool calls. The first build comes from svc.Run.
func runMCP(ctx context.Context, s *stack, serveStdio func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.watch(gCtx, false) })
	g.Go(func() error { return s.svc.Run(gCtx) })

	err := serveStdio()
	cancel()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		s.logger.Warn("background task failed", slog.String("error", werr.Error()))
	}
	return err
}

func serve(ctx context.Context, s *stack) error {
	cfg, logger := s.cfg, s.logger

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.watch(gCtx, true)
	})

	g.Go(func() error {
		if err := s.svc.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("graph service: %w", err)
		}
		return nil
	})

	if s.engine != nil {
		g.Go(func() error {
			return s.engine.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE handlers only return once the broker closes their channels.
		s.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context once shutdown begins so the
// watcher, graph service and layout engine stop with the HTTP server.
var errShutdown = errors.New("shutdown")
