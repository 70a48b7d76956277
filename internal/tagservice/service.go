// Package tagservice coordinates the document store, tag synthesis and the
// persisted tagging record. It owns the staleness guard: a synthesized result
// is only written if the document is unchanged since it was read.
package tagservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	pathpkg "path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/autotag/internal/apperr"
	"github.com/starford/autotag/internal/checksum"
	"github.com/starford/autotag/internal/eligibility"
	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/state"
	"github.com/starford/autotag/internal/storage"
	"github.com/starford/autotag/internal/tagging"
)

// Synthesizer turns document content into tagged content.
type Synthesizer interface {
	Synthesize(ctx context.Context, content string, vocabulary []string, model string) (string, error)
}

// ModelLister enumerates the models the LLM service offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Notifier receives user-visible events.
type Notifier interface {
	Notify(models.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(models.Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e models.Event) { f(e) }

// Outcome describes what TagDocument did.
type Outcome string

const (
	OutcomeTagged    Outcome = "tagged"
	OutcomeUnchanged Outcome = "unchanged"
)

// Config holds the service dependencies.
type Config struct {
	Store       storage.Provider
	State       *state.Manager
	Synthesizer Synthesizer
	Models      ModelLister
	Notifier    Notifier
	Logger      *slog.Logger
	// Concurrency bounds how many documents a batch processes at once (default 1).
	Concurrency int
}

// Service runs tagging and untagging operations.
type Service struct {
	store       storage.Provider
	state       *state.Manager
	synth       Synthesizer
	models      ModelLister
	notifier    Notifier
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// New creates a tagging service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(models.Event) {})
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		store:       cfg.Store,
		state:       cfg.State,
		synth:       cfg.Synthesizer,
		models:      cfg.Models,
		notifier:    notifier,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// State exposes the settings manager.
func (s *Service) State() *state.Manager { return s.state }

// Models lists available LLM models. Any failure yields an empty list.
func (s *Service) Models(ctx context.Context) []string {
	if s.models == nil {
		return []string{}
	}
	names, err := s.models.ListModels(ctx)
	if err != nil {
		s.logger.Warn("models: list failed", slog.String("error", err.Error()))
		return []string{}
	}
	return names
}

// TagDocument synthesizes tags for path and writes them back unless the
// document changed during synthesis. It does not consult exclusion patterns.
func (s *Service) TagDocument(ctx context.Context, path string) (Outcome, error) {
	path = cleanPath(path)
	snap := s.state.Snapshot()
	model := snap.Model()
	if model == "" {
		return "", apperr.ErrNoModelSelected
	}

	initial, err := s.read(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(initial)) == "" {
		s.logger.Debug("tag: skipped empty document", slog.String("path", path))
		return "", apperr.ErrEmptyContent
	}

	out, err := s.synth.Synthesize(ctx, string(initial), snap.DefaultTags, model)
	if err != nil {
		s.logger.Warn("tag: synthesis failed", slog.String("path", path), slog.String("error", err.Error()))
		s.notifier.Notify(models.Event{Kind: models.EventFailed, Path: path, Error: err.Error()})
		return "", fmt.Errorf("tag %s: %w", path, err)
	}
	if out == string(initial) {
		return OutcomeUnchanged, nil
	}

	current, err := s.read(path)
	if err != nil {
		return "", err
	}
	if !bytes.Equal(current, initial) {
		s.logger.Info("tag: concurrent edit detected, discarding result",
			slog.String("path", path),
			slog.String("initial", checksum.Short(initial)),
			slog.String("current", checksum.Short(current)))
		return "", apperr.ErrConcurrentEdit
	}

	if err := s.store.Write(path, []byte(out)); err != nil {
		s.notifier.Notify(models.Event{Kind: models.EventFailed, Path: path, Error: err.Error()})
		return "", fmt.Errorf("tag %s: %w", path, err)
	}
	s.state.Record(path, s.now())
	s.logger.Info("tag: document tagged", slog.String("path", path))
	s.notifier.Notify(models.Event{Kind: models.EventTagged, Path: path})
	return OutcomeTagged, nil
}

// TagIfEligible tags path only if it passes the eligibility filter. It reports
// whether the document was eligible.
func (s *Service) TagIfEligible(ctx context.Context, path string) (bool, error) {
	path = cleanPath(path)
	meta, err := s.store.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, apperr.ErrNotFound
		}
		return false, err
	}
	snap := s.state.Snapshot()
	if !eligibility.NewFilter(snap.ExcludePatterns).ShouldProcess(meta, snap.TaggedFiles) {
		return false, nil
	}
	_, err = s.TagDocument(ctx, path)
	return true, err
}

// UntagDocument removes tagging from path. Exclusion patterns never block it.
func (s *Service) UntagDocument(_ context.Context, path string) (bool, error) {
	path = cleanPath(path)
	data, err := s.read(path)
	if err != nil {
		return false, err
	}
	out, modified := tagging.Untag(string(data))
	if !modified {
		return false, nil
	}
	if err := s.store.Write(path, []byte(out)); err != nil {
		s.notifier.Notify(models.Event{Kind: models.EventFailed, Path: path, Error: err.Error()})
		return false, fmt.Errorf("untag %s: %w", path, err)
	}
	s.state.Forget(path)
	s.logger.Info("untag: document untagged", slog.String("path", path))
	s.notifier.Notify(models.Event{Kind: models.EventUntagged, Path: path})
	return true, nil
}

// DocumentRemoved drops the tagging record entry of a deleted document.
func (s *Service) DocumentRemoved(path string) {
	path = cleanPath(path)
	if s.state.Forget(path) {
		s.logger.Debug("tag: forgot removed document", slog.String("path", path))
	}
}

// PruneRecord forgets record entries whose documents no longer exist and
// returns how many were removed.
func (s *Service) PruneRecord() (int, error) {
	metas, err := s.store.List("")
	if err != nil {
		return 0, err
	}
	present := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		present[m.Path] = struct{}{}
	}
	var stale []string
	for path := range s.state.Snapshot().TaggedFiles {
		if _, ok := present[path]; !ok {
			stale = append(stale, path)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	s.state.Update(func(st *models.State) {
		for _, path := range stale {
			delete(st.TaggedFiles, path)
		}
	})
	s.logger.Info("tag: pruned tagging record", slog.Int("removed", len(stale)))
	return len(stale), nil
}

// Status reports the tagging state of one document.
func (s *Service) Status(path string) (DocumentStatus, error) {
	meta, err := s.store.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DocumentStatus{}, apperr.ErrNotFound
		}
		return DocumentStatus{}, err
	}
	return s.status(meta, s.state.Snapshot()), nil
}

// ListDocuments returns the tagging state of every document in the store.
func (s *Service) ListDocuments() ([]DocumentStatus, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	snap := s.state.Snapshot()
	out := make([]DocumentStatus, len(metas))
	for i, m := range metas {
		out[i] = s.status(m, snap)
	}
	return out, nil
}

func (s *Service) status(meta models.DocumentMetadata, snap *models.State) DocumentStatus {
	filter := eligibility.NewFilter(snap.ExcludePatterns)
	st := DocumentStatus{
		Path:       meta.Path,
		ModifiedAt: meta.ModifiedAt,
		Eligible:   filter.ShouldProcess(meta, snap.TaggedFiles),
	}
	if p, ok := filter.Excluded(meta.Path); ok {
		st.ExcludedBy = p.String()
	}
	if ms, ok := snap.TaggedFiles[meta.Path]; ok {
		t := time.UnixMilli(ms)
		st.TaggedAt = &t
	}
	return st
}

// cleanPath turns a caller-supplied path into the form store listings use, so
// it can serve as a tagging record key.
func cleanPath(p string) string {
	return pathpkg.Clean(filepath.ToSlash(p))
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}
