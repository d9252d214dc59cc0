package repository

import (
	"context"
	"errors"
	"time"

	"invoicing-session-control/internal/session/domain"
)

// ErrDuplicateSession is returned by Insert when the session id already exists.
var ErrDuplicateSession = errors.New("session id already exists")

// Repository defines persistence for sessions. The session table is the only
// shared mutable state between client processes; every coordination primitive
// of the admission subsystem is one of these calls.
type Repository interface {
	// Insert persists a new session. Returns ErrDuplicateSession if the id is taken.
	Insert(ctx context.Context, s *domain.Session) error
	// UpdateActivity advances the session's last-activity timestamp. A missing
	// session is a no-op, not an error; the timestamp never moves backwards.
	UpdateActivity(ctx context.Context, sessionID, accountID string, at time.Time) error
	// Delete removes the session. Deleting an absent session is a no-op.
	Delete(ctx context.Context, sessionID, accountID string) error
	// CountActive counts all sessions for the account, regardless of staleness.
	// Accuracy depends on DeleteStale having run first.
	CountActive(ctx context.Context, accountID string) (int, error)
	// DeleteStale removes every session, for any account, whose last activity
	// is older than cutoff. Returns the number of sessions removed.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
	// ListByAccount returns the account's sessions, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error)
}
