// Package store persists the last-known bridge configuration.
//
// Storage is a single JSON slot under a fixed file name. Load returns nil
// when the slot was never written or cannot be parsed; stale or corrupt
// data is treated as absent rather than fatal so that a damaged file
// degrades to a fresh discovery run instead of a crash. Clear removes the
// slot and is the unlink primitive.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/huelink/huelink-go/pkg/bridge"
)

// FileName is the fixed slot name inside the storage directory.
const FileName = "bridge.json"

// Store manages persistence of the bridge configuration to a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store rooted at dir. The directory is created on first
// save.
func New(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// NewAtPath creates a store writing to an explicit file path.
func NewAtPath(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored bridge configuration.
// Returns nil, nil if the slot was never written or does not parse.
func (s *Store) Load() (*bridge.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &bridge.Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		// No migration of older formats is attempted; a parse failure
		// means the slot is absent.
		return nil, nil
	}

	return cfg, nil
}

// Save persists the bridge configuration, overwriting any previous slot
// wholesale. The file carries the bridge credential, so permissions are
// restricted to the owner.
func (s *Store) Save(cfg *bridge.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Clear removes the slot. Clearing an absent slot is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
