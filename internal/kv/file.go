package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/obentoo/geodash/internal/common/logger"
)

// ErrStateCorrupted is returned when the state file cannot be parsed
var ErrStateCorrupted = errors.New("state file is corrupted")

// StateFileName is the file the FileStore persists to
const StateFileName = "state.json"

// stateFile represents the JSON structure stored on disk
type stateFile struct {
	Values map[string]string `json:"values"`
}

// FileStore keeps all values in a single JSON file.
// Every mutation rewrites the file.
type FileStore struct {
	values map[string]string
	path   string
	mu     sync.RWMutex
}

// NewFileStore creates or loads the state file in dir.
// A missing file starts empty; a corrupted one is logged, treated as empty
// and overwritten by the next write.
func NewFileStore(dir string) (*FileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	s := &FileStore{
		values: make(map[string]string),
		path:   filepath.Join(dir, StateFileName),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("ignoring unreadable state file %s: %v", s.path, err)
		s.values = make(map[string]string)
	}

	return s, nil
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorrupted, err)
	}

	if sf.Values != nil {
		s.values = sf.Values
	}
	return nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveUnsafe()
}

func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveUnsafe()
}

// Close is a no-op; every write is already on disk.
func (s *FileStore) Close() error {
	return nil
}

// saveUnsafe persists the values. Caller must hold the write lock.
func (s *FileStore) saveUnsafe() error {
	data, err := json.MarshalIndent(stateFile{Values: s.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save state file: %w", err)
	}

	return nil
}
