// Package session provides storage for per-client calculator sessions.
package session

import (
	"errors"
	"time"
)

// Store persists sessions.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves a session.
	// Returns ErrNotFound if the session doesn't exist.
	Load(id string) (*Session, error)

	// Save stores a session, replacing any session with the same ID.
	Save(s *Session) error

	// Delete removes a session.
	// Returns nil if the session doesn't exist.
	Delete(id string) error

	// DeleteIfIdle removes a session only if it was last accessed before the
	// given time, checked atomically with the removal. Reports whether the
	// session was removed.
	DeleteIfIdle(id string, before time.Time) (bool, error)

	// ListIdle returns the IDs of sessions last accessed before the given time.
	// Returns empty slice (not error) if there are none.
	ListIdle(before time.Time) ([]string, error)

	// Len returns the number of stored sessions.
	Len() (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for session operations.
var (
	// ErrNotFound indicates a session doesn't exist.
	ErrNotFound = errors.New("session not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("session store closed")
)
