package domain

import "time"

// License is the seat-licensing record for one account. Owned and mutated by
// account-administration flows; read-only from the session subsystem.
type License struct {
	AccountID string
	ExpiresAt time.Time
	// MaxSimultaneousLogins is the seat cap; nil when the license carries no
	// value, in which case the configured default applies.
	MaxSimultaneousLogins *int
	MaxUsers              int
	CreatedAt             time.Time
}
