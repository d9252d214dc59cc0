// Package events defines best-effort session audit events emitted on
// admission decisions and session teardown (e.g. to Kafka).
package events

import (
	"context"
	"time"
)

// Type labels what happened to a session.
type Type string

const (
	TypeAdmitted Type = "admitted"
	TypeRejected Type = "rejected"
	TypeLogout   Type = "logout"
	TypeReaped   Type = "reaped"
)

// Event is one session audit record.
type Event struct {
	SessionID        string    `json:"sessionId,omitempty"`
	AccountID        string    `json:"accountId"`
	EventType        Type      `json:"eventType"`
	DeviceDescriptor string    `json:"deviceDescriptor,omitempty"`
	// Detail carries extra context, e.g. the rejection reason or reap count.
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Emitter emits session events. Callers use it best-effort: log and ignore errors.
type Emitter interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
