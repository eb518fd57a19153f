// Package session persists the logged-in user between runs.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/obentoo/geodash/internal/auth"
	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/kv"
)

// Key is the state key holding the serialized user
const Key = "app_user"

// Store mirrors the current user into a kv.Store.
type Store struct {
	kv kv.Store
}

// New creates a session store backed by s
func New(s kv.Store) *Store {
	return &Store{kv: s}
}

// Restore returns the persisted user, or nil when there is none.
// A record that cannot be decoded is removed.
func (s *Store) Restore() *auth.User {
	raw, ok := s.kv.Get(Key)
	if !ok {
		return nil
	}

	var user auth.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.Email == "" {
		logger.Debug("discarding unreadable session record: %v", err)
		if rmErr := s.kv.Remove(Key); rmErr != nil {
			logger.Debug("failed to remove session record: %v", rmErr)
		}
		return nil
	}
	return &user
}

// Save persists user
func (s *Store) Save(user *auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(Key, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the persisted user
func (s *Store) Clear() error {
	if err := s.kv.Remove(Key); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
