// Package state holds the persisted settings and tagging record and writes
// them through a pluggable Store on every mutation.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/autotag/internal/models"
)

// Store persists the State object.
type Store interface {
	// Load decodes persisted state over into. Missing state is not an error.
	Load(ctx context.Context, into *models.State) error
	// Save overwrites the persisted state with s.
	Save(ctx context.Context, s *models.State) error
}

// Manager owns the in-memory State. Mutations are persisted immediately;
// persistence failures are logged, never returned (last write wins).
type Manager struct {
	mu     sync.RWMutex
	state  *models.State
	saveMu sync.Mutex
	store  Store
	logger *slog.Logger
}

// NewManager loads persisted state from store merged over defaults.
func NewManager(ctx context.Context, store Store, defaults *models.State, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st := defaults.Clone()
	if err := store.Load(ctx, st); err != nil {
		return nil, fmt.Errorf("state: load: %w", err)
	}
	if st.TaggedFiles == nil {
		st.TaggedFiles = models.TaggingRecord{}
	}
	return &Manager{state: st, store: store, logger: logger}, nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() *models.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Model returns the selected LLM model, or "" when none is selected.
func (m *Manager) Model() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Model()
}

// Record marks path as successfully tagged at t.
func (m *Manager) Record(path string, t time.Time) {
	m.Update(func(s *models.State) {
		s.TaggedFiles[path] = t.UnixMilli()
	})
}

// Forget removes path from the tagging record. It reports whether an entry existed.
func (m *Manager) Forget(path string) bool {
	m.mu.RLock()
	_, ok := m.state.TaggedFiles[path]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	m.Update(func(s *models.State) {
		delete(s.TaggedFiles, path)
	})
	return true
}

// Update applies fn to the state and persists the result.
func (m *Manager) Update(fn func(*models.State)) {
	m.mu.Lock()
	fn(m.state)
	if m.state.TaggedFiles == nil {
		m.state.TaggedFiles = models.TaggingRecord{}
	}
	m.mu.Unlock()
	m.persist()
}

// persist saves the latest state. Saves are serialized and each one takes its
// snapshot after acquiring the save lock, so a stale snapshot never lands last.
func (m *Manager) persist() {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	snap := m.Snapshot()
	if err := m.store.Save(context.Background(), snap); err != nil {
		m.logger.Warn("state: save failed", slog.String("error", err.Error()))
	}
}
