// Package store persists the whole strategy collection to a single JSON file.
//
// Serialization contract: every date field is written as an RFC 3339 string
// (encoding/json's time.Time default) and rehydrated to a time.Time on load.
// Saves are full rewrites through an atomic temp-file rename.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"martingale-core/internal/strategy"
)

// Collection maps an owning user id to their strategies, in creation order.
type Collection map[string][]*strategy.Strategy

// Store reads and writes the strategy file. Callers serialize writes through
// the Writer; Store itself only guards against overlapping file operations.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the whole collection. A missing file is an empty collection,
// not an error, so first boot works without setup.
func (s *Store) Load() (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Collection{}, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	var col Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	if col == nil {
		col = Collection{}
	}
	return col, nil
}

// Save rewrites the whole collection atomically.
func (s *Store) Save(col Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}

	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}
