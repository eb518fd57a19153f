// Package history keeps the ordered, de-duplicated list of searched IPs.
package history

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/kv"
)

// Key is the state key holding the JSON array of IPs
const Key = "search_history"

// Store holds the search history, most recent first.
// Every mutation is persisted before it returns. When persisting fails the
// in-memory list is still updated and the error is returned.
type Store struct {
	kv      kv.Store
	entries []string
	mu      sync.RWMutex
}

// New creates a store backed by s. Call Restore to load persisted entries.
func New(s kv.Store) *Store {
	return &Store{kv: s}
}

// Restore loads the persisted list. Absent or unreadable content yields an
// empty history.
func (s *Store) Restore() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if raw, ok := s.kv.Get(Key); ok {
		var entries []string
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			logger.Debug("ignoring unreadable search history: %v", err)
		} else {
			s.entries = dedupe(entries)
		}
	}
	return s.copyUnsafe()
}

// List returns a copy of the current entries
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyUnsafe()
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Record moves ip to the front of the history, adding it if absent.
func (s *Store) Record(ip string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]string, 0, len(s.entries)+1)
	next = append(next, ip)
	for _, e := range s.entries {
		if e != ip {
			next = append(next, e)
		}
	}
	s.entries = next

	return s.copyUnsafe(), s.persistUnsafe()
}

// DeleteMany removes every entry contained in ips and returns what is left.
func (s *Store) DeleteMany(ips map[string]bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		if !ips[e] {
			next = append(next, e)
		}
	}
	s.entries = next

	return s.copyUnsafe(), s.persistUnsafe()
}

// persistUnsafe writes the list. Caller must hold the write lock.
func (s *Store) persistUnsafe() error {
	entries := s.entries
	if entries == nil {
		entries = []string{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode search history: %w", err)
	}
	if err := s.kv.Set(Key, string(data)); err != nil {
		return fmt.Errorf("failed to save search history: %w", err)
	}
	return nil
}

func (s *Store) copyUnsafe() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// dedupe drops repeated entries, keeping the first (most recent) occurrence
func dedupe(entries []string) []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
