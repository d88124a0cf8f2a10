// Package store persists tutoring sessions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/tutorlabs/internal/domain"
)

var (
	// ErrNotFound means no session has the requested id.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means the session existed but sat idle past the timeout.
	ErrExpired = errors.New("session expired")
)

// DefaultTimeout is the idle expiry used when none is configured.
const DefaultTimeout = time.Hour

// Store is keyed session persistence with idle expiry. Implementations
// are safe for concurrent use and return copies: mutating a session
// returned by Get does not change the stored one until Save.
type Store interface {
	// Get returns the session, ErrNotFound or ErrExpired. An expired
	// session is removed.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Save creates or replaces a session.
	Save(ctx context.Context, s *domain.Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every session idle past the timeout and
	// returns their ids.
	DeleteExpired(ctx context.Context) ([]string, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

func expired(s *domain.Session, timeout time.Duration, now time.Time) bool {
	return now.Sub(s.UpdatedAt) > timeout
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
