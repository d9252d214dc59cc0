// Package service implements the license registry: read-only seat-cap and
// expiry lookups over the license repository.
package service

import (
	"context"
	"log"
	"math"
	"time"

	"invoicing-session-control/internal/license/domain"
)

// LicenseRepo is the minimal license repository needed by the registry.
type LicenseRepo interface {
	GetByAccount(ctx context.Context, accountID string) (*domain.License, error)
}

// Registry answers license questions for the admission flow. Lookup failures
// degrade to "no license": the account falls back to the default seat cap
// rather than being locked out by a degraded license store.
type Registry struct {
	repo            LicenseRepo
	defaultMaxSeats int
	nowF            func() time.Time
}

// NewRegistry returns a Registry backed by repo. defaultMaxSeats is the seat
// cap applied when an account has no license or the license carries no value.
func NewRegistry(repo LicenseRepo, defaultMaxSeats int) *Registry {
	return &Registry{
		repo:            repo,
		defaultMaxSeats: defaultMaxSeats,
		nowF:            time.Now,
	}
}

// GetLicense returns the account's license, or nil when absent or when the
// lookup fails. Failures are logged and swallowed.
func (r *Registry) GetLicense(ctx context.Context, accountID string) *domain.License {
	lic, err := r.repo.GetByAccount(ctx, accountID)
	if err != nil {
		log.Printf("license: lookup for account %s failed: %v", accountID, err)
		return nil
	}
	return lic
}

// IsValid reports whether the account holds a license that has not expired.
// Returns false when no license exists.
func (r *Registry) IsValid(ctx context.Context, accountID string) bool {
	lic := r.GetLicense(ctx, accountID)
	if lic == nil {
		return false
	}
	return !r.nowF().After(lic.ExpiresAt)
}

// MaxLogins returns the seat cap for the account: the license value when
// present and positive, else the configured default.
func (r *Registry) MaxLogins(ctx context.Context, accountID string) int {
	lic := r.GetLicense(ctx, accountID)
	if lic == nil || lic.MaxSimultaneousLogins == nil || *lic.MaxSimultaneousLogins <= 0 {
		return r.defaultMaxSeats
	}
	return *lic.MaxSimultaneousLogins
}

// DaysRemaining returns the number of days until the license expires, rounded
// up. Returns 0 when no license exists or the license has expired.
func (r *Registry) DaysRemaining(ctx context.Context, accountID string) int {
	lic := r.GetLicense(ctx, accountID)
	if lic == nil {
		return 0
	}
	remaining := lic.ExpiresAt.Sub(r.nowF())
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
