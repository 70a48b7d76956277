package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/ollama"
	"github.com/starford/autotag/internal/state"
	"github.com/starford/autotag/internal/storage"
	"github.com/starford/autotag/internal/tagging"
	"github.com/starford/autotag/internal/tagservice"
)

// components are the pieces every command shares.
type components struct {
	store  *storage.FS
	state  *state.Manager
	llm    *ollama.Client
	svc    *tagservice.Service
	closer func() error
}

func (c *components) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func applyOptions(opts []Option) (*application, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStateStore builds the persistence port selected in the config.
func openStateStore(cfg StateConfig) (state.Store, func() error, error) {
	switch cfg.Driver {
	case StateDriverSQLite:
		db, err := state.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return state.NewJSONFile(cfg.Path), nil, nil
	}
}

// wire opens the vault and state and builds the tagging service.
func wire(ctx context.Context, cfg *Config, logger *slog.Logger, notifier tagservice.Notifier) (*components, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	backend, closer, err := openStateStore(cfg.State)
	if err != nil {
		return nil, fmt.Errorf("init state: %w", err)
	}
	st, err := state.NewManager(ctx, backend, cfg.Tagging.DefaultState(), logger)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}

	llm := ollama.New(cfg.Ollama.URL, cfg.Ollama.Timeout)
	svc := tagservice.New(tagservice.Config{
		Store:       store,
		State:       st,
		Synthesizer: tagging.NewEngine(llm),
		Models:      llm,
		Notifier:    notifier,
		Logger:      logger,
		Concurrency: cfg.Tagging.Concurrency,
	})

	return &components{store: store, state: st, llm: llm, svc: svc, closer: closer}, nil
}

// printNotifier reports tagging events as text lines for the CLI.
type printNotifier struct {
	w io.Writer
}

func (p printNotifier) Notify(e models.Event) {
	switch e.Kind {
	case models.EventTagged:
		fmt.Fprintf(p.w, "tagged: %s\n", e.Path)
	case models.EventUntagged:
		fmt.Fprintf(p.w, "untagged: %s\n", e.Path)
	case models.EventFailed:
		fmt.Fprintf(p.w, "failed: %s: %s\n", e.Path, e.Error)
	case models.EventProgress:
		fmt.Fprintf(p.w, "[%d/%d] %s\n", e.Done, e.Total, e.Path)
	}
}
