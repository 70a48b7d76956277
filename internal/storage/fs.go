package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/autotag/internal/checksum"
	"github.com/starford/autotag/internal/models"
)

// DefaultExtensions lists the document types processed when none are configured.
var DefaultExtensions = []string{".md"}

// FS implements Provider backed by the local file system.
type FS struct {
	root       string // absolute path to vault directory
	extensions []string
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist. Only files whose extension is listed in
// extensions are treated as documents.
func NewFS(root string, extensions ...string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(e)
	}
	return &FS{root: abs, extensions: exts}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// IsDocument reports whether name has one of the processed extensions.
func (f *FS) IsDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range f.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// List walks dir (relative to root) and returns metadata for every document.
// Hidden directories (.git, .obsidian, ...) are skipped.
func (f *FS) List(dir string) ([]models.DocumentMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.DocumentMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !f.IsDocument(d.Name()) {
			return nil
		}
		rel, _ := filepath.Rel(f.root, p)
		meta, err := f.metadata(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Stat returns metadata for a single document.
func (f *FS) Stat(path string) (models.DocumentMetadata, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.DocumentMetadata{}, err
	}
	meta, err := f.metadata(abs, filepath.ToSlash(filepath.Clean(path)))
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return meta, nil
}

func (f *FS) metadata(abs, rel string) (models.DocumentMetadata, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return models.DocumentMetadata{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.DocumentMetadata{}, err
	}
	return models.DocumentMetadata{
		Path:       rel,
		Checksum:   checksum.Sum(data),
		ModifiedAt: info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces the content of a vault file.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	return WriteFileAtomic(abs, content)
}

// WriteFileAtomic writes content to an absolute path: tmp file → fsync → rename.
// Readers observe either the old or the new content, never a partial write.
func WriteFileAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".autotag-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
