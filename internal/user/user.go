package user

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a user cannot be found
var ErrNotFound = errors.New("user not found")

// User is a directory entry. RequestCount and WindowStart belong to the
// quota ledger and are only mutated through it.
type User struct {
	ID           string    `db:"id"`
	FullName     string    `db:"full_name"`
	Email        string    `db:"email"`
	RequestCount int       `db:"request_count"`
	WindowStart  time.Time `db:"window_start"`
	CreatedAt    time.Time `db:"created_at"`
}
