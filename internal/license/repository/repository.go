package repository

import (
	"context"

	"invoicing-session-control/internal/license/domain"
)

// Repository defines persistence for licenses.
type Repository interface {
	GetByAccount(ctx context.Context, accountID string) (*domain.License, error)
}
