// Package watcher turns filesystem events in the vault into document events.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives document events. Paths are vault-relative with forward slashes.
type Handler interface {
	DocumentChanged(path string)
	DocumentRemoved(path string)
	// Reconcile runs shortly after renames to drop state of vanished documents.
	Reconcile()
}

// Watch starts an fsnotify watcher on the vault root and forwards events for
// files accepted by isDoc until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list and their documents reported as changed. Rename events report the old
// path as removed and trigger a debounced Reconcile.
func Watch(ctx context.Context, root string, isDoc func(name string) bool, logger *slog.Logger, h Handler) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			h.Reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			if hidden(filepath.Base(absPath)) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					reportNewDir(root, absPath, isDoc, h)
					continue
				}
			}

			if !isDoc(absPath) {
				continue
			}
			rel, relErr := relPath(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				logger.Debug("watcher: changed", slog.String("path", rel), slog.String("op", ev.Op.String()))
				h.DocumentChanged(rel)

			case ev.Op&fsnotify.Remove != 0:
				logger.Debug("watcher: removed", slog.String("path", rel))
				h.DocumentRemoved(rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new path
				// arrives as a separate Create.
				logger.Debug("watcher: renamed away", slog.String("path", rel))
				h.DocumentRemoved(rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reportNewDir reports documents already present in a newly created directory.
func reportNewDir(root, dirPath string, isDoc func(string) bool, h Handler) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dirPath && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden(d.Name()) || !isDoc(path) {
			return nil
		}
		if rel, relErr := relPath(root, path); relErr == nil {
			h.DocumentChanged(rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func relPath(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
