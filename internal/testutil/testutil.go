// Package testutil provides shared test helpers for setting up vaults and state.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/state"
	"github.com/starford/autotag/internal/storage"
)

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestVault creates a temporary vault directory with a storage.FS.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteDoc writes content to rel inside vaultDir, creating parent directories.
func WriteDoc(t *testing.T, vaultDir, rel, content string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ReadDoc returns the content of rel inside vaultDir.
func ReadDoc(t *testing.T, vaultDir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(vaultDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// TestState creates a state manager backed by a JSON file in a temp dir.
// A nil defaults selects the model "test-model" with no vocabulary.
func TestState(t *testing.T, defaults *models.State) *state.Manager {
	t.Helper()
	if defaults == nil {
		model := "test-model"
		defaults = &models.State{SelectedModel: &model, TaggedFiles: models.TaggingRecord{}}
	}
	store := state.NewJSONFile(filepath.Join(t.TempDir(), "state.json"))
	m, err := state.NewManager(context.Background(), store, defaults, Logger())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
