package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Moudathirou/meetscribe/shared/postgresql"
)

// Storage is the durable user directory. It also implements quota.Store so
// counters survive a restart.
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a user storage on an established database client
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// EnsureSchema creates the users table when it does not exist yet
func (s *Storage) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			full_name     TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			request_count INTEGER NOT NULL DEFAULT 0,
			window_start  TIMESTAMPTZ NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure users schema: %w", err)
	}

	return nil
}

// GetByEmail fetches a user by email
func (s *Storage) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	query := `
		SELECT id, full_name, email, request_count, window_start, created_at
		FROM users
		WHERE email = $1
	`

	err := s.db.GetContext(ctx, &u, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetOrCreateByEmail resolves the user for email, provisioning a fresh one
// with a generated id and a display name from the address's local part.
func (s *Storage) GetOrCreateByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	u = &User{
		ID:          uuid.New().String(),
		FullName:    strings.SplitN(email, "@", 2)[0],
		Email:       email,
		WindowStart: now,
		CreatedAt:   now,
	}

	query := `
		INSERT INTO users (id, full_name, email, request_count, window_start, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, u.ID, u.FullName, u.Email, u.RequestCount, u.WindowStart, u.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// A concurrent request may have won the insert; read back the row that stuck.
	return s.GetByEmail(ctx, email)
}

// LoadCounter implements quota.Store
func (s *Storage) LoadCounter(ctx context.Context, userID string) (int, time.Time, bool, error) {
	var row struct {
		RequestCount int       `db:"request_count"`
		WindowStart  time.Time `db:"window_start"`
	}

	query := `SELECT request_count, window_start FROM users WHERE id = $1`

	err := s.db.GetContext(ctx, &row, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, false, nil
		}
		return 0, time.Time{}, false, fmt.Errorf("failed to load quota counter: %w", err)
	}

	return row.RequestCount, row.WindowStart, true, nil
}

// SaveCounter implements quota.Store
func (s *Storage) SaveCounter(ctx context.Context, userID string, count int, windowStart time.Time) error {
	query := `UPDATE users SET request_count = $2, window_start = $3 WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID, count, windowStart); err != nil {
		return fmt.Errorf("failed to save quota counter: %w", err)
	}

	return nil
}
