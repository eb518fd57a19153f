package users

import (
	"context"
	"sync"
)

// MemoryRepository keeps accounts in memory, like the original seeded list
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[uint]User
	email map[string]uint
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[uint]User),
		email: make(map[string]uint),
	}
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.email[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uint) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// Seed inserts or replaces users by id
func (r *MemoryRepository) Seed(_ context.Context, users []User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		if old, ok := r.byID[u.ID]; ok {
			delete(r.email, old.Email)
		}
		r.byID[u.ID] = u
		r.email[u.Email] = u.ID
	}
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
