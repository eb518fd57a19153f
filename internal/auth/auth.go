// Package auth authenticates dashboard users against the auth API.
package auth

import (
	"context"
	"strings"
)

// Messages surfaced to the user
const (
	MsgAuthFailed         = "Authentication failed"
	MsgUnreachable        = "Unable to reach authentication service"
	MsgInvalidCredentials = "Invalid email or password"
)

// User is the identity record of a logged-in user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Token string `json:"token,omitempty"`
}

// DisplayName returns the name, falling back to the email
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}

// Result is the outcome of an authentication attempt.
// Unreachable marks a transport failure rather than a rejection.
type Result struct {
	Success     bool
	User        *User
	Message     string
	Unreachable bool
}

// Authenticator checks credentials. Implementations never return a Go
// error; every failure is folded into Result.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) Result
}

// Failure builds a rejected Result
func Failure(message string) Result {
	return Result{Message: message}
}
