package domain

import (
	"errors"
	"time"
)

// Session represents one seated login of an account from one client process.
type Session struct {
	ID               string
	AccountID        string
	DeviceDescriptor string // free-text device/browser label
	LastActivity     time.Time
	CreatedAt        time.Time
}

// Validate validates the session for persistence. Returns an error describing the first validation failure.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.AccountID == "" {
		return errors.New("account id is required")
	}
	if s.LastActivity.IsZero() {
		return errors.New("last activity is required")
	}
	return nil
}
