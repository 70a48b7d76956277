// Package workspace tracks which documents the user currently has open.
package workspace

import (
	"sort"
	"sync"
)

// Tracker holds the active document and the set of documents visible in an
// editing surface. When the active document changes, the previous one is
// reported to the close callback.
type Tracker struct {
	mu      sync.RWMutex
	active  string
	open    map[string]struct{}
	onClose func(path string)
}

// New creates a tracker. onClose may be nil.
func New(onClose func(path string)) *Tracker {
	return &Tracker{open: map[string]struct{}{}, onClose: onClose}
}

// SetActive makes path the active document. An empty path means no document
// is active.
func (t *Tracker) SetActive(path string) {
	t.mu.Lock()
	prev := t.active
	t.active = path
	t.mu.Unlock()

	if prev != "" && prev != path && t.onClose != nil {
		t.onClose(prev)
	}
}

// SetOpen replaces the set of open documents.
func (t *Tracker) SetOpen(paths []string) {
	open := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p != "" {
			open[p] = struct{}{}
		}
	}
	t.mu.Lock()
	t.open = open
	t.mu.Unlock()
}

// IsOpen reports whether path is active or open in any editing surface.
func (t *Tracker) IsOpen(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if path == t.active {
		return path != ""
	}
	_, ok := t.open[path]
	return ok
}

// Snapshot returns the active document and the sorted open set.
func (t *Tracker) Snapshot() (active string, open []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	open = make([]string, 0, len(t.open))
	for p := range t.open {
		open = append(open, p)
	}
	sort.Strings(open)
	return t.active, open
}
