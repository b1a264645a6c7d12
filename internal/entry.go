// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/api"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/catalog"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/index"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/mcpserver"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/metrics"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/sse"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/storage"
)

// workspace is the state shared by the HTTP and MCP front ends.
type workspace struct {
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	lib    *catalog.Library
}

func (w *workspace) Close() {
	if err := w.db.Close(); err != nil {
		w.logger.Warn("index close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// openWorkspace prepares storage, the index and the template catalog.
func (a *application) openWorkspace(logger *slog.Logger) (*workspace, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	lib, err := catalog.Open(cfg.Library.Path, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	return &workspace{logger: logger, store: store, db: db, lib: lib}, nil
}

// watch runs the workspace and catalog watchers in g.
func (a *application) watch(ctx context.Context, g *errgroup.Group, ws *workspace, svc *flowservice.Service) {
	g.Go(func() error {
		if err := index.Watch(ctx, ws.db, ws.store, ws.store.Root(), ws.logger, svc.ExternalChange); err != nil {
			ws.logger.Error("workspace watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})
	if a.config.Library.Watch && a.config.Library.Path != "" {
		g.Go(func() error {
			if err := ws.lib.Watch(ctx, a.config.Library.Path, ws.logger); err != nil {
				ws.logger.Error("catalog watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	editor, err := cfg.Editor.Service()
	if err != nil {
		return fmt.Errorf("editor config: %w", err)
	}

	ws, err := app.openWorkspace(logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	broker := sse.NewBroker(cfg.App.HTTP.EventThrottle)
	defer broker.Close()

	collector := metrics.NewCollector("dagflow")

	svc := flowservice.New(ws.store, ws.db, ws.lib,
		flowservice.WithPublisher(broker),
		flowservice.WithMetrics(collector),
		flowservice.WithLogger(logger),
		flowservice.WithEditor(editor),
	)
	defer svc.Close()

	apiRouter := api.NewRouter(svc, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		CORSOrigins: cfg.App.HTTP.CORSOrigins,
		Events:      broker,
		Metrics:     collector,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := ws.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	app.watch(gCtx, g, ws, svc)

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Unblock the watchers.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes. Logs go to the
// configured output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	editor, err := app.config.Editor.Service()
	if err != nil {
		return fmt.Errorf("editor config: %w", err)
	}

	ws, err := app.openWorkspace(logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	svc := flowservice.New(ws.store, ws.db, ws.lib,
		flowservice.WithLogger(logger),
		flowservice.WithEditor(editor),
	)
	defer svc.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(ctx)
	app.watch(gCtx, g, ws, svc)

	logger.Info("MCP server starting", slog.String("workspace_path", app.config.Workspace.Path))
	serveErr := mcpserver.New(svc, app.version).ServeStdio()

	cancel()
	_ = g.Wait()
	if serveErr != nil {
		return fmt.Errorf("mcp server: %w", serveErr)
	}
	return nil
}
