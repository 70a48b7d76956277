// Package scheduler decides when a changed or closed document is offered to
// the tagging pipeline.
//
// Change events are debounced per path with a leading edge: the first event
// runs immediately and later events inside the window are dropped. Close
// events wait a short settle delay and bypass the debounce window.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/starford/autotag/internal/apperr"
)

const (
	DefaultWindow      = 2 * time.Second
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultConcurrency = 2
)

// Tagger runs the eligibility-filtered tagging pipeline for one document.
type Tagger interface {
	TagIfEligible(ctx context.Context, path string) (bool, error)
}

// OpenChecker reports whether a document is open in an editing surface.
type OpenChecker interface {
	IsOpen(path string) bool
}

// Config holds scheduler settings.
type Config struct {
	Window      time.Duration
	SettleDelay time.Duration
	// IsDocument filters paths of processable document types. Nil accepts all.
	IsDocument func(path string) bool
	// Concurrency bounds how many documents are tagged at once.
	Concurrency int
	Logger      *slog.Logger
}

// Scheduler turns document events into tagging runs.
type Scheduler struct {
	tagger Tagger
	open   OpenChecker
	window time.Duration
	settle time.Duration
	isDoc  func(string) bool
	sem    *semaphore.Weighted
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	enabled bool
	ctx     context.Context
	cancel  context.CancelFunc
	last    map[string]time.Time
	wg      sync.WaitGroup
}

// New creates a disabled scheduler.
func New(tagger Tagger, open OpenChecker, cfg Config) *Scheduler {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.IsDocument == nil {
		cfg.IsDocument = func(string) bool { return true }
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		tagger: tagger,
		open:   open,
		window: cfg.Window,
		settle: cfg.SettleDelay,
		isDoc:  cfg.IsDocument,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger: cfg.Logger,
		now:    time.Now,
		last:   map[string]time.Time{},
	}
}

// SetEnabled turns auto-tagging on or off. Repeated calls with the same value
// are no-ops. Disabling cancels pending close triggers and in-flight runs.
func (s *Scheduler) SetEnabled(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled == on {
		return
	}
	s.enabled = on
	if on {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.logger.Info("scheduler: auto-tagging enabled")
		return
	}
	s.cancel()
	s.ctx, s.cancel = nil, nil
	s.last = map[string]time.Time{}
	s.logger.Info("scheduler: auto-tagging disabled")
}

// Enabled reports whether auto-tagging is active.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// OnDocumentChanged handles a create or modify event for path.
func (s *Scheduler) OnDocumentChanged(path string) {
	if !s.isDoc(path) {
		return
	}
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if at, ok := s.last[path]; ok && now.Sub(at) < s.window {
		s.mu.Unlock()
		s.logger.Debug("scheduler: change debounced", slog.String("path", path))
		return
	}
	s.last[path] = now
	if s.open != nil && s.open.IsOpen(path) {
		s.mu.Unlock()
		s.logger.Debug("scheduler: skipped open document", slog.String("path", path))
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(ctx, path)
	}()
}

// OnDocumentClosed offers path to the pipeline after the settle delay.
func (s *Scheduler) OnDocumentClosed(path string) {
	if !s.isDoc(path) {
		return
	}
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		t := time.NewTimer(s.settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s.run(ctx, path)
	}()
}

// Tick drops debounce entries whose window has elapsed.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for p, at := range s.last {
		if now.Sub(at) >= s.window {
			delete(s.last, p)
		}
	}
}

// Run calls Tick once per window until ctx is cancelled, then disables the
// scheduler and waits for in-flight runs.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.SetEnabled(false)
			s.Wait()
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Wait blocks until all dispatched runs have finished.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run(ctx context.Context, path string) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)
	if ctx.Err() != nil {
		return
	}
	eligible, err := s.tagger.TagIfEligible(ctx, path)
	switch {
	case err == nil:
		if eligible {
			s.logger.Debug("scheduler: processed", slog.String("path", path))
		}
	case errors.Is(err, apperr.ErrConcurrentEdit), errors.Is(err, apperr.ErrEmptyContent), errors.Is(err, context.Canceled):
	case errors.Is(err, apperr.ErrNoModelSelected):
		s.logger.Warn("scheduler: no model selected, auto-tagging skipped", slog.String("path", path))
	default:
		s.logger.Warn("scheduler: tagging failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
