package store

import (
	"context"
	"errors"

	"github.com/dukerupert/planwise/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid event")
)

// Source is a user's ordered event collection. Every backend (SQLite,
// MongoDB, Google Calendar, the HTTP client) implements it.
type Source interface {
	List(ctx context.Context, userKey string) ([]model.Event, error)
	Create(ctx context.Context, userKey string, ev model.Event) (*model.Event, error)
	Update(ctx context.Context, userKey, eventID string, patch model.EventPatch) (*model.Event, error)
	Delete(ctx context.Context, userKey, eventID string) error
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
