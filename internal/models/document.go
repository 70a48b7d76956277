// Package models defines the domain types shared by the tagging pipeline.
package models

import "time"

// DocumentMetadata describes a document in the store without its content.
type DocumentMetadata struct {
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modified_at"`
}

// TaggingRecord maps a document path to the time (ms since epoch) of its
// last successful tagging write.
type TaggingRecord map[string]int64

// State is the persisted settings object. The JSON shape is part of the
// on-disk contract and must not change.
type State struct {
	SelectedModel   *string       `json:"selectedModel"`
	DefaultTags     []string      `json:"defaultTags"`
	AutoAddTags     bool          `json:"autoAddTags"`
	TaggedFiles     TaggingRecord `json:"taggedFiles"`
	ExcludePatterns []string      `json:"excludePatterns"`
}

// Model returns the selected model name, or "" when none is selected.
func (s *State) Model() string {
	if s.SelectedModel == nil {
		return ""
	}
	return *s.SelectedModel
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := &State{
		AutoAddTags:     s.AutoAddTags,
		DefaultTags:     append([]string(nil), s.DefaultTags...),
		ExcludePatterns: append([]string(nil), s.ExcludePatterns...),
		TaggedFiles:     make(TaggingRecord, len(s.TaggedFiles)),
	}
	if s.SelectedModel != nil {
		m := *s.SelectedModel
		out.SelectedModel = &m
	}
	for k, v := range s.TaggedFiles {
		out.TaggedFiles[k] = v
	}
	return out
}
