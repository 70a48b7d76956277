package tagservice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/autotag/internal/apperr"
	"github.com/starford/autotag/internal/eligibility"
	"github.com/starford/autotag/internal/models"
)

// DocumentStatus is the tagging view of one document.
type DocumentStatus struct {
	Path       string     `json:"path"`
	ModifiedAt time.Time  `json:"modified_at"`
	TaggedAt   *time.Time `json:"tagged_at,omitempty"`
	Eligible   bool       `json:"eligible"`
	ExcludedBy string     `json:"excluded_by,omitempty"`
}

// BatchResult summarizes a TagAll or UntagAll run.
type BatchResult struct {
	RunID     string            `json:"run_id"`
	Total     int               `json:"total"`
	Changed   int               `json:"changed"`
	Unchanged int               `json:"unchanged"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
}

type batch struct {
	mu     sync.Mutex
	res    BatchResult
	done   int
	notify Notifier
}

func (b *batch) finish(path string, changed bool, err error) {
	b.mu.Lock()
	switch {
	case err == nil && changed:
		b.res.Changed++
	case err == nil:
		b.res.Unchanged++
	case errors.Is(err, apperr.ErrConcurrentEdit), errors.Is(err, apperr.ErrEmptyContent):
		b.res.Skipped++
	default:
		b.res.Failed++
		if b.res.Failures == nil {
			b.res.Failures = map[string]string{}
		}
		b.res.Failures[path] = err.Error()
	}
	b.done++
	ev := models.Event{Kind: models.EventProgress, RunID: b.res.RunID, Path: path, Done: b.done, Total: b.res.Total}
	b.mu.Unlock()
	b.notify.Notify(ev)
}

// TagAll tags every eligible document. A failure on one document never
// aborts the others.
func (s *Service) TagAll(ctx context.Context) (BatchResult, error) {
	snap := s.state.Snapshot()
	if snap.Model() == "" {
		return BatchResult{}, apperr.ErrNoModelSelected
	}
	metas, err := s.store.List("")
	if err != nil {
		return BatchResult{}, err
	}
	filter := eligibility.NewFilter(snap.ExcludePatterns)
	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		if filter.ShouldProcess(m, snap.TaggedFiles) {
			paths = append(paths, m.Path)
		}
	}
	return s.run(ctx, "tag", paths, func(ctx context.Context, path string) (bool, error) {
		out, err := s.TagDocument(ctx, path)
		return out == OutcomeTagged, err
	})
}

// UntagAll untags every document regardless of exclusion patterns.
func (s *Service) UntagAll(ctx context.Context) (BatchResult, error) {
	metas, err := s.store.List("")
	if err != nil {
		return BatchResult{}, err
	}
	paths := make([]string, len(metas))
	for i, m := range metas {
		paths[i] = m.Path
	}
	return s.run(ctx, "untag", paths, s.UntagDocument)
}

func (s *Service) run(ctx context.Context, op string, paths []string, fn func(context.Context, string) (bool, error)) (BatchResult, error) {
	b := &batch{
		res:    BatchResult{RunID: uuid.NewString(), Total: len(paths)},
		notify: s.notifier,
	}
	s.logger.Info("batch: started",
		slog.String("op", op),
		slog.String("run_id", b.res.RunID),
		slog.Int("total", len(paths)))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			changed, err := fn(ctx, path)
			b.finish(path, changed, err)
			return nil
		})
	}
	_ = g.Wait()

	b.mu.Lock()
	res := b.res
	b.mu.Unlock()
	s.logger.Info("batch: finished",
		slog.String("op", op),
		slog.String("run_id", res.RunID),
		slog.Int("changed", res.Changed),
		slog.Int("failed", res.Failed))
	s.notifier.Notify(models.Event{Kind: models.EventFinished, RunID: res.RunID, Done: res.Changed, Total: res.Total})
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
