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

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/capture"
	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/dedup"
	"github.com/starford/ansuz/internal/extract"
	"github.com/starford/ansuz/internal/match"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/sink"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/textnorm"
)

// components is the assembled object graph shared by service and MCP modes.
type components struct {
	store storage.Provider
	db    *dedup.DB
	dedup *dedup.Deduplicator
	sink  *sink.Sink
	pipe  *pipeline.Pipeline
}

// sweepExpired removes dedup records that slid past the horizon.
func (c *components) sweepExpired(logger *slog.Logger) {
	if n, err := c.db.Sweep(time.Now().Add(-c.dedup.Horizon())); err != nil {
		logger.Warn("dedup sweep failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("swept expired dedup records", slog.Int64("deleted", n))
	}
}

// build assembles the pipeline and its collaborators from configuration.
// onCommit, if non-nil, is invoked after every successful commit.
func build(cfg *Config, logger *slog.Logger, onCommit func(command.Command)) (*components, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := dedup.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	table := command.NewVariantTable(cfg.Keywords.Note, cfg.Keywords.Task,
		cfg.Keywords.NoteVariants, cfg.Keywords.TaskVariants)
	norm := textnorm.New(cfg.Keywords.Note, cfg.Keywords.Task, cfg.Keywords.WakePhrase)
	matcher := match.New(table, cfg.Keywords.WakePhrase, logger)
	extractor := extract.New(table, cfg.Capture.OtherPartySenders)

	dd := dedup.New(db, norm, table,
		time.Duration(cfg.Dedup.HorizonHours)*time.Hour,
		cfg.Dedup.FailOpen, logger)

	snk := sink.New(store, cfg.Vault.NotesDir, cfg.Vault.TasksDir,
		int64(cfg.Pipeline.SinkConcurrency), logger)

	opts := []pipeline.Option{
		pipeline.WithPendingExpiry(time.Duration(cfg.Pipeline.PendingExpirySeconds) * time.Second),
		pipeline.WithRecentCapacity(cfg.Dedup.RecentCapacity),
	}
	if onCommit != nil {
		opts = append(opts, pipeline.WithOnCommit(onCommit))
	}
	pipe := pipeline.New(extractor, norm, matcher, dd, snk, logger, opts...)

	return &components{store: store, db: db, dedup: dd, sink: snk, pipe: pipe}, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if app.mcpOnly {
		return runMCP(cfg, logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("dedup_horizon_hours", cfg.Dedup.HorizonHours),
		slog.String("keyword_note", cfg.Keywords.Note),
		slog.String("keyword_task", cfg.Keywords.Task),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker for the commit feed.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	comp, err := build(cfg, logger, func(cmd command.Command) {
		broker.PublishCommand(cmd.Kind.String(), cmd.Content)
	})
	if err != nil {
		return err
	}
	defer comp.db.Close()

	// Initial sweep of expired dedup records.
	comp.sweepExpired(logger)

	// Build API router.
	h := api.NewHandler(comp.pipe, comp.store, comp.sink)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	// Build chi router.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Spool-directory capture channel, when configured.
	if dir := cfg.Capture.SpoolDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create spool dir: %w", err)
		}
		g.Go(func() error {
			if err := capture.WatchSpool(gCtx, dir, comp.pipe, logger); err != nil {
				return fmt.Errorf("spool watcher: %w", err)
			}
			return nil
		})
	}

	// Periodic sweep of the dedup window.
	g.Go(func() error {
		interval := time.Duration(cfg.Dedup.SweepIntervalMinute) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				comp.sweepExpired(logger)
			}
		}
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// runMCP serves the pipeline over MCP stdio. Logs go to stderr so stdout
// stays clean for the protocol.
func runMCP(cfg *Config, logger *slog.Logger) error {
	comp, err := build(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer comp.db.Close()

	// MCP sessions can be long-lived too; clear out expired records before
	// serving.
	comp.sweepExpired(logger)

	srv := mcpserver.New(comp.pipe, comp.store, comp.sink)
	logger.Info("MCP server starting on stdio")
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
