package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a concurrency-safe in-memory Store. It mirrors the Postgres
// semantics exactly — conditional create, normalized keys, sentinel
// errors — so engine tests exercise the same branches the production
// store produces.
type Memory struct {
	mu    sync.Mutex
	users map[string]User

	// Error injection for failure-path tests; zero value means no error.
	CreateErr       error
	FindErr         error
	UpdatePassErr   error
	UpdateStatusErr error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]User)}
}

func (m *Memory) Create(_ context.Context, in CreateInput) (User, error) {
	if m.CreateErr != nil {
		return User{}, m.CreateErr
	}

	email := NormalizeEmail(in.Email)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[email]; exists {
		return User{}, ErrEmailTaken
	}
	u := User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  in.PasswordHash,
		Role:          in.Role,
		Status:        in.Status,
		OAuthProvider: in.OAuthProvider,
		OAuthSubject:  in.OAuthSubject,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.users[email] = u
	return u, nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (User, error) {
	if m.FindErr != nil {
		return User{}, m.FindErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UpdatePassword(_ context.Context, email, newHash string) error {
	if m.UpdatePassErr != nil {
		return m.UpdatePassErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeEmail(email)
	u, ok := m.users[key]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = newHash
	u.UpdatedAt = time.Now().UTC()
	m.users[key] = u
	return nil
}

func (m *Memory) UpdateStatus(_ context.Context, email string, status AccountStatus) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeEmail(email)
	u, ok := m.users[key]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	m.users[key] = u
	return nil
}

// Delete removes a record. Test helper; the engine never deletes users.
func (m *Memory) Delete(email string) {
	m.mu.Lock()
	delete(m.users, NormalizeEmail(email))
	m.mu.Unlock()
}
