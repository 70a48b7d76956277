// Package apperr holds the sentinel errors shared across the tagging pipeline.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoModelSelected means no LLM model is configured, so synthesis refuses to run.
	ErrNoModelSelected = errors.New("no model selected")
	// ErrEmptyContent marks documents without any non-whitespace content.
	ErrEmptyContent = errors.New("empty content")
	// ErrNetwork wraps any failure talking to the LLM service.
	ErrNetwork = errors.New("llm service unavailable")
	// ErrConcurrentEdit is returned when a document changed while its tags were being synthesized.
	ErrConcurrentEdit = errors.New("concurrent edit detected")
)
