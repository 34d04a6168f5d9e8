package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"reviews-refresh/models"
)

// JSONStore keeps one pretty-printed JSON file per client in a directory.
// Each slug maps to its own file, so concurrent use across distinct slugs
// needs no locking.
type JSONStore struct {
	dir string
}

// NewJSONStore creates a store rooted at dir. The directory is not created
// until EnsureDir is called.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

// EnsureDir creates the store directory if it does not exist.
func (s *JSONStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create dir %q: %w", s.dir, err)
	}
	return nil
}

// Path returns the file path for slug.
func (s *JSONStore) Path(slug string) string {
	return filepath.Join(s.dir, slug+".json")
}

// Exists reports whether a result file is present for slug.
func (s *JSONStore) Exists(slug string) bool {
	_, err := os.Stat(s.Path(slug))
	return err == nil
}

// Load reads and decodes the result for slug. It returns ErrNotFound when
// there is no file and a decode error when the file is malformed.
func (s *JSONStore) Load(slug string) (*models.CachedResult, error) {
	data, err := os.ReadFile(s.Path(slug))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", slug, err)
	}

	var result models.CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("store: malformed cache file for %s: %w", slug, err)
	}
	return &result, nil
}

// IsFresh reports whether the stored result for slug was updated less than
// maxAge before now. A missing file is stale; a malformed file, including
// one without a parseable lastUpdated, is an error.
func (s *JSONStore) IsFresh(slug string, now time.Time, maxAge time.Duration) (bool, error) {
	result, err := s.Load(slug)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	updated, err := ParseTimestamp(result.LastUpdated)
	if err != nil {
		return false, fmt.Errorf("store: malformed cache file for %s: %w", slug, err)
	}
	return now.Sub(updated) < maxAge, nil
}

// Save writes result for slug. The data goes to a temporary file in the
// same directory which is then renamed over the target, so readers never
// observe a partially written file.
func (s *JSONStore) Save(slug string, result *models.CachedResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", slug, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+slug+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file for %s: %w", slug, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write %s: %w", slug, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", slug, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("store: chmod %s: %w", slug, err)
	}
	if err := os.Rename(tmpName, s.Path(slug)); err != nil {
		return fmt.Errorf("store: rename %s: %w", slug, err)
	}
	return nil
}

// ParseTimestamp parses a stored lastUpdated value.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing lastUpdated")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid lastUpdated %q: %w", value, err)
	}
	return t, nil
}
