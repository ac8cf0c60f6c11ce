// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sudo-Harshk/NoteDiscovery/internal/api"
	"github.com/sudo-Harshk/NoteDiscovery/internal/attachments"
	"github.com/sudo-Harshk/NoteDiscovery/internal/graph"
	"github.com/sudo-Harshk/NoteDiscovery/internal/hooks"
	"github.com/sudo-Harshk/NoteDiscovery/internal/index"
	"github.com/sudo-Harshk/NoteDiscovery/internal/mcpserver"
	"github.com/sudo-Harshk/NoteDiscovery/internal/noteservice"
	"github.com/sudo-Harshk/NoteDiscovery/internal/sse"
	"github.com/sudo-Harshk/NoteDiscovery/internal/storage"
)

// components is everything the serve and mcp commands share.
type components struct {
	store   *storage.FS
	builder *graph.Builder
	db      *index.DB
	syncer  *index.Syncer
	svc     *noteservice.Service
}

func (c *components) close() {
	c.syncer.Stop()
	_ = c.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the JSON logger. A configured log file is rotated by
// lumberjack; otherwise logs go to fallback.
func newLogger(cfg ApplicationConfig, fallback io.Writer) *slog.Logger {
	out := fallback
	if cfg.LogFile.Path != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		}
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

func newHooks(cfg HooksConfig, logger *slog.Logger) *hooks.Pipeline {
	p := hooks.New(logger)
	if cfg.NormalizeNewlines {
		p.Register(hooks.NormalizeNewlines())
	}
	if cfg.TrailingNewline {
		p.Register(hooks.TrailingNewline())
	}
	return p
}

// setup opens the store and index, runs the initial sync and builds the
// note service. pub may be nil.
func setup(ctx context.Context, cfg *Config, logger *slog.Logger, pub noteservice.Publisher) (*components, error) {
	if err := os.MkdirAll(cfg.Storage.NotesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Storage.NotesDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	builder, err := graph.NewBuilder(store, cfg.Graph.CacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("init graph: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	syncer := index.NewSyncer(db, store, builder, cfg.Events.SyncDelay, logger)

	if st, err := syncer.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync done",
			slog.Int("indexed", st.Indexed),
			slog.Int("removed", st.Removed),
			slog.Int("links", st.Links))
	}

	opts := []noteservice.Option{
		noteservice.WithHooks(newHooks(cfg.Hooks, logger)),
		noteservice.WithIndex(db, syncer),
		noteservice.WithSearch(cfg.Search.Enabled),
		noteservice.WithLogger(logger),
	}
	if pub != nil {
		opts = append(opts, noteservice.WithPublisher(pub))
	}
	svc := noteservice.New(store, attachments.New(store.Root(), cfg.Uploads.MaxBytes), builder, opts...)
	return &components{store: store, builder: builder, db: db, syncer: syncer, svc: svc}, nil
}

// watch runs the filesystem watcher until ctx ends. Every note change drops
// its cached links, schedules an index sync and reaches onChange.
func (c *components) watch(ctx context.Context, logger *slog.Logger, onChange index.EventCallback) error {
	return index.Watch(ctx, c.store.Root(), logger, func(kind, path string) {
		c.builder.Invalidate(path)
		if onChange != nil {
			onChange(kind, path)
		}
	}, c.syncer.Schedule)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(cfg.App, app.logOut)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_dir", cfg.Storage.NotesDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.Events.GraphThrottle)
	defer broker.Close()

	c, err := setup(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := c.db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeHealth(w, http.StatusServiceUnavailable, "index unavailable")
			return
		}
		if _, err := os.Stat(c.store.Root()); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, "notes dir unavailable")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	})

	r.Mount("/api", api.NewRouter(c.svc, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		MaxUpload:   cfg.Uploads.MaxBytes,
		Events:      broker,
		Logger:      logger,
	}))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// The watcher is the single source of note.created/updated/deleted events.
	g.Go(func() error {
		return c.watch(gCtx, logger, broker.NoteChanged)
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Close open event streams first; Shutdown waits for active handlers.
		broker.Close()
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

// errShutdown ends the errgroup once the server has been shut down, which
// cancels the watcher.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr unless a log file
// is configured, since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app.config.App, app.logOut)
	slog.SetDefault(logger)

	c, err := setup(ctx, app.config, logger, nil)
	if err != nil {
		return err
	}
	defer c.close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := c.watch(watchCtx, logger, nil); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Starting MCP server on stdio", slog.String("notes_dir", app.config.Storage.NotesDir))
	return mcpserver.New(c.svc, app.version, logger).ServeStdio()
}

// ExportGraph builds the reference graph of the configured notes directory
// and writes it to w as JSON. The link index is not touched.
func ExportGraph(ctx context.Context, w io.Writer, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app.config.App, app.logOut)

	store, err := storage.NewFS(app.config.Storage.NotesDir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	builder, err := graph.NewBuilder(store, 0, logger)
	if err != nil {
		return err
	}
	g, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

func writeHealth(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": msg})
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
