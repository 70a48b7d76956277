// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/autotag/internal/api"
	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/scheduler"
	"github.com/starford/autotag/internal/sse"
	"github.com/starford/autotag/internal/tagservice"
	"github.com/starford/autotag/internal/watcher"
	"github.com/starford/autotag/internal/workspace"
)

// watchHandler routes vault events to the scheduler and the tagging record.
type watchHandler struct {
	sched  *scheduler.Scheduler
	svc    *tagservice.Service
	logger *slog.Logger
}

func (h watchHandler) DocumentChanged(path string) { h.sched.OnDocumentChanged(path) }
func (h watchHandler) DocumentRemoved(path string) { h.svc.DocumentRemoved(path) }

func (h watchHandler) Reconcile() {
	if _, err := h.svc.PruneRecord(); err != nil {
		h.logger.Warn("reconcile: prune failed", slog.String("error", err.Error()))
	}
}

// readinessLLM is the part of the Ollama client readiness checks use.
type readinessLLM interface {
	ListModels(ctx context.Context) ([]string, error)
	BaseURL() string
}

// readyStatus is the /health/ready response body.
type readyStatus struct {
	Status     string `json:"status"`
	Ollama     string `json:"ollama"`
	SSEClients int    `json:"sse_clients"`
}

// readyHandler fails with 503 while the LLM service does not answer.
func readyHandler(llm readinessLLM, events interface{ ClientCount() int }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := readyStatus{Status: "ok", Ollama: llm.BaseURL(), SSEClients: events.ClientCount()}
		status := http.StatusOK
		if _, err := llm.ListModels(r.Context()); err != nil {
			body.Status = "ollama unavailable"
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Run starts the daemon: vault watcher, auto-tag scheduler and HTTP API.
func Run(ctx context.Context, opts ...Option) error {
	app, err := applyOptions(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg, os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("ollama_url", cfg.Ollama.URL),
		slog.String("state_driver", cfg.State.Driver),
		slog.String("state_path", cfg.State.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker doubles as the tagging notifier.
	broker := sse.NewBroker(500 * time.Millisecond)
	defer broker.Close()

	c, err := wire(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	if n, err := c.svc.PruneRecord(); err != nil {
		logger.Warn("initial prune failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("initial prune", slog.Int("removed", n))
	}

	var sched *scheduler.Scheduler
	tracker := workspace.New(func(path string) { sched.OnDocumentClosed(path) })
	sched = scheduler.New(c.svc, tracker, scheduler.Config{
		Window:      cfg.Tagging.Debounce,
		SettleDelay: cfg.Tagging.SettleDelay,
		IsDocument:  c.store.IsDocument,
		Concurrency: cfg.Tagging.Concurrency,
		Logger:      logger,
	})
	sched.SetEnabled(c.state.Snapshot().AutoAddTags)

	apiRouter := api.NewRouter(api.Deps{
		Service:           c.svc,
		Workspace:         tracker,
		OnSettingsChanged: func(s *models.State) {
			sched.SetEnabled(s.AutoAddTags)
			broker.Publish(sse.Event{Type: "settings.updated", Data: map[string]any{
				"autoAddTags":   s.AutoAddTags,
				"selectedModel": s.Model(),
			}})
		},
		Events:            broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
	r.Get("/health/ready", readyHandler(c.llm, broker))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Vault watcher feeding the scheduler.
	g.Go(func() error {
		h := watchHandler{sched: sched, svc: c.svc, logger: logger}
		if err := watcher.Watch(gCtx, c.store.Root(), c.store.IsDocument, logger, h); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	// Debounce bookkeeping; drains in-flight runs on shutdown.
	g.Go(func() error {
		return sched.Run(gCtx)
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stop()
		// Ends open SSE streams so Shutdown does not wait on them.
		broker.Close()

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
