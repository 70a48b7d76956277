package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/storage"
)

// JSONFile stores the state as a single JSON object on disk.
type JSONFile struct {
	path string
}

// NewJSONFile returns a Store backed by the file at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load decodes the file over into; a missing file leaves into untouched.
func (f *JSONFile) Load(_ context.Context, into *models.State) error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", f.path, err)
	}
	return nil
}

// Save atomically overwrites the file with s.
func (f *JSONFile) Save(_ context.Context, s *models.State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(f.path, data)
}
