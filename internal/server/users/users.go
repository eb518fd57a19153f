// Package users stores the accounts the auth API accepts.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when no user matches the lookup
	ErrNotFound = errors.New("user not found")
	// ErrInvalidSeed is returned for seed entries missing required fields
	ErrInvalidSeed = errors.New("invalid seed user")
	// ErrUnknownStore is returned by Open for an unrecognised store name
	ErrUnknownStore = errors.New("unknown user store")
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account with a hashed password
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `json:"role"`
}

// CheckPassword reports whether password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Repository looks accounts up
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	Seed(ctx context.Context, users []User) error
	Close() error
}

// Open creates the repository named by store: "memory" (default) or "sqlite"
func Open(store, dsn string) (Repository, error) {
	switch store {
	case "", "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		return OpenGorm(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, store)
	}
}

// Seed is a plaintext account as written in a users file
type Seed struct {
	ID       uint   `toml:"id"`
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Role     string `toml:"role"`
}

// seedFile is the TOML layout of a users file:
//
//	[[users]]
//	id = 1
//	name = "Admin User Test"
//	email = "admin@test.com"
//	password = "123456789"
//	role = "admin"
type seedFile struct {
	Users []Seed `toml:"users"`
}

// DefaultSeeds returns the two demo accounts
func DefaultSeeds() []Seed {
	return []Seed{
		{ID: 1, Name: "Admin User Test", Email: "admin@test.com", Password: "123456789", Role: RoleAdmin},
		{ID: 2, Name: "Jack Sparrow", Email: "jack@test.com", Password: "123456789", Role: RoleUser},
	}
}

// LoadSeedFile reads seed accounts from a TOML users file
func LoadSeedFile(path string) ([]Seed, error) {
	var sf seedFile
	if _, err := toml.DecodeFile(path, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}
	return sf.Users, nil
}

// Prepare validates seeds and hashes their passwords with the given bcrypt
// cost. Emails and explicit ids must be unique. Missing ids are numbered
// after the largest id seen; a missing role becomes "user".
func Prepare(seeds []Seed, cost int) ([]User, error) {
	var maxID uint
	for _, s := range seeds {
		if s.ID > maxID {
			maxID = s.ID
		}
	}

	seen := make(map[string]bool, len(seeds))
	seenIDs := make(map[uint]bool, len(seeds))
	out := make([]User, 0, len(seeds))
	for i, s := range seeds {
		email := strings.TrimSpace(s.Email)
		if email == "" || s.Password == "" {
			return nil, fmt.Errorf("%w: entry %d needs email and password", ErrInvalidSeed, i+1)
		}
		if seen[email] {
			return nil, fmt.Errorf("%w: duplicate email %s", ErrInvalidSeed, email)
		}
		seen[email] = true
		if s.ID != 0 {
			if seenIDs[s.ID] {
				return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidSeed, s.ID)
			}
			seenIDs[s.ID] = true
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", email, err)
		}

		id := s.ID
		if id == 0 {
			maxID++
			id = maxID
		}
		role := s.Role
		if role == "" {
			role = RoleUser
		}

		out = append(out, User{
			ID:           id,
			Name:         s.Name,
			Email:        email,
			PasswordHash: string(hash),
			Role:         role,
		})
	}
	return out, nil
}
