package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"invoicing-session-control/internal/session/domain"
)

// uniqueViolation is the Postgres error code for duplicate primary keys.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert persists the session to the database. The session must have ID set.
// Returns ErrDuplicateSession when the id is already taken.
func (r *PostgresRepository) Insert(ctx context.Context, s *domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	const q = `INSERT INTO sessions (session_id, account_id, device_descriptor, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.AccountID, s.DeviceDescriptor, s.LastActivity, s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateSession
		}
		return err
	}
	return nil
}

// UpdateActivity sets the session's last-activity timestamp. No rows matching
// is not an error; the guard keeps the timestamp from moving backwards when a
// late heartbeat lands after a newer one.
func (r *PostgresRepository) UpdateActivity(ctx context.Context, sessionID, accountID string, at time.Time) error {
	const q = `UPDATE sessions SET last_activity = $3
		WHERE session_id = $1 AND account_id = $2 AND last_activity <= $3`
	_, err := r.db.ExecContext(ctx, q, sessionID, accountID, at)
	return err
}

// Delete removes the session with the given id. Deleting an absent session succeeds.
func (r *PostgresRepository) Delete(ctx context.Context, sessionID, accountID string) error {
	const q = `DELETE FROM sessions WHERE session_id = $1 AND account_id = $2`
	_, err := r.db.ExecContext(ctx, q, sessionID, accountID)
	return err
}

// CountActive counts all sessions recorded for the account.
func (r *PostgresRepository) CountActive(ctx context.Context, accountID string) (int, error) {
	const q = `SELECT count(*) FROM sessions WHERE account_id = $1`
	var n int
	if err := r.db.QueryRowContext(ctx, q, accountID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteStale removes every session whose last activity is older than cutoff,
// across all accounts. Returns the number of rows removed.
func (r *PostgresRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM sessions WHERE last_activity < $1`
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListByAccount returns the account's sessions ordered by creation time, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	const q = `SELECT session_id, account_id, device_descriptor, last_activity, created_at
		FROM sessions WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.AccountID, &s.DeviceDescriptor, &s.LastActivity, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
