package repository

import (
	"context"
	"database/sql"
	"errors"

	"invoicing-session-control/internal/license/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a license repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByAccount returns the license for accountID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByAccount(ctx context.Context, accountID string) (*domain.License, error) {
	const q = `SELECT account_id, expires_at, max_simultaneous_logins, max_users, created_at
		FROM licenses WHERE account_id = $1`
	var (
		lic  domain.License
		seat sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, accountID).Scan(
		&lic.AccountID, &lic.ExpiresAt, &seat, &lic.MaxUsers, &lic.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if seat.Valid {
		v := int(seat.Int64)
		lic.MaxSimultaneousLogins = &v
	}
	return &lic, nil
}
