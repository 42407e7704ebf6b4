package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmailTaken is returned by Create when a record with the same
	// normalized email already exists. The engine's registration
	// race-recovery branches on this value explicitly.
	ErrEmailTaken = errors.New("store: email already taken")
	// ErrNotFound is returned by lookups and updates when no record
	// matches the normalized email.
	ErrNotFound = errors.New("store: user not found")
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus uint8

const (
	// StatusActive accounts may log in and refresh sessions.
	StatusActive AccountStatus = iota
	// StatusDisabled accounts are administratively switched off.
	StatusDisabled
	// StatusLocked accounts are blocked pending review.
	StatusLocked
	// StatusDeleted accounts are tombstoned; the email stays reserved.
	StatusDeleted
)

// User is a credential record. PasswordHash is empty for OAuth-only
// accounts and is never serialized; the engine additionally strips it
// before returning a user to callers.
type User struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"`
	Role          string        `json:"role"`
	Status        AccountStatus `json:"status"`
	OAuthProvider string        `json:"oauth_provider,omitempty"`
	OAuthSubject  string        `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CreateInput carries the fields for a new user record. Email is
// normalized by the store before insertion.
type CreateInput struct {
	Email         string
	PasswordHash  string
	Role          string
	Status        AccountStatus
	OAuthProvider string
	OAuthSubject  string
}

// Store is the credential store consumed by the engine. Create must be
// conditional at the backend (unique email) and report a duplicate as
// ErrEmailTaken — never as an opaque error — because the engine
// re-checks on conflict instead of trusting any prior existence probe.
type Store interface {
	Create(ctx context.Context, in CreateInput) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	UpdatePassword(ctx context.Context, email, newHash string) error
	UpdateStatus(ctx context.Context, email string, status AccountStatus) error
}

// NormalizeEmail lowercases and trims an email address. It is the
// canonical key transformation; every Store method applies it before
// touching the backend.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
