// Package storage defines the document store the tagging pipeline reads and writes through.
package storage

import "github.com/starford/autotag/internal/models"

// Provider is the interface for document operations. Paths are relative to the store root.
type Provider interface {
	// List returns metadata for every document under dir.
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the document at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the full content of the document at path.
	Write(path string, content []byte) error
	// Stat returns metadata for a single document.
	Stat(path string) (models.DocumentMetadata, error)
}
