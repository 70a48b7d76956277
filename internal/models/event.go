package models

// EventKind names a user-visible tagging notification.
type EventKind string

const (
	EventTagged   EventKind = "tag.tagged"
	EventUntagged EventKind = "tag.untagged"
	EventFailed   EventKind = "tag.failed"
	EventProgress EventKind = "tag.progress"
	EventFinished EventKind = "tag.finished"
)

// Event is published on the notification channel.
type Event struct {
	Kind  EventKind `json:"kind"`
	RunID string    `json:"run_id,omitempty"`
	Path  string    `json:"path,omitempty"`
	Error string    `json:"error,omitempty"`
	Done  int       `json:"done,omitempty"`
	Total int       `json:"total,omitempty"`
}
