package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// Postgres implements Store on a users table with a unique index on
// email. The unique index is what makes Create a conditional write:
// two racing inserts for one email resolve to exactly one row and one
// ErrEmailTaken.
type Postgres struct {
	db *sql.DB
}

// Open connects to Postgres through the pgx stdlib driver and verifies
// the connection. Call once at startup; the returned store is safe for
// concurrent use.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing *sql.DB. Useful when the host owns the
// pool or in tests.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Close releases the underlying pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// DB exposes the underlying handle for migrations.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

func (p *Postgres) Create(ctx context.Context, in CreateInput) (User, error) {
	u := User{
		Email:         NormalizeEmail(in.Email),
		PasswordHash:  in.PasswordHash,
		Role:          in.Role,
		Status:        in.Status,
		OAuthProvider: in.OAuthProvider,
		OAuthSubject:  in.OAuthSubject,
	}

	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, role, status, oauth_provider, oauth_subject)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		u.Email, u.PasswordHash, u.Role, u.Status, u.OAuthProvider, u.OAuthSubject,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("store: insert user: %w", err)
	}

	return u, nil
}

func (p *Postgres) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, status, oauth_provider, oauth_subject, created_at, updated_at
		 FROM users WHERE email = $1`,
		NormalizeEmail(email),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.OAuthProvider, &u.OAuthSubject, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("store: select user: %w", err)
	}
	return u, nil
}

func (p *Postgres) UpdatePassword(ctx context.Context, email, newHash string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE email = $1`,
		NormalizeEmail(email), newHash,
	)
	if err != nil {
		return fmt.Errorf("store: update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, email string, status AccountStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET status = $2, updated_at = now() WHERE email = $1`,
		NormalizeEmail(email), status,
	)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
