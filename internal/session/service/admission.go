// Package service implements seat admission over the session store: reap
// stale sessions, count the account's seats, and insert when under the
// license cap.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"invoicing-session-control/internal/events"
	"invoicing-session-control/internal/session/domain"
)

// ErrStoreUnavailable wraps session-store failures during admission. The seat
// count is fail-closed: a degraded store denies new logins rather than
// allowing unbounded seat overrun.
var ErrStoreUnavailable = fmt.Errorf("session store unavailable")

// SeatLimitError is returned when the account has no free seats. The message
// is user-facing and names the configured limit.
type SeatLimitError struct {
	Limit int
}

func (e *SeatLimitError) Error() string {
	return fmt.Sprintf("Maximum %d simultaneous login(s) allowed. Please log out from another device.", e.Limit)
}

// SessionRepo is the minimal session repository needed by the admission controller.
type SessionRepo interface {
	Insert(ctx context.Context, s *domain.Session) error
	CountActive(ctx context.Context, accountID string) (int, error)
}

// SeatCapResolver resolves the seat cap for an account (license value or default).
type SeatCapResolver interface {
	MaxLogins(ctx context.Context, accountID string) int
}

// AdmissionController decides whether a new login may take a seat.
//
// The reap-count-insert sequence is deliberately not transactional: two
// concurrent admissions can both observe a free seat and both insert,
// over-admitting by at most the number of racers until the next reap. Closing
// the race would need a conditional insert with an expected-count guard
// server-side; the documented policy accepts the bounded window instead.
type AdmissionController struct {
	repo    SessionRepo
	caps    SeatCapResolver
	reaper  *Reaper
	emitter events.Emitter
	nowF    func() time.Time
}

// NewAdmissionController returns an AdmissionController with the given dependencies.
// emitter may be nil to disable audit events.
func NewAdmissionController(repo SessionRepo, caps SeatCapResolver, reaper *Reaper, emitter events.Emitter) *AdmissionController {
	return &AdmissionController{
		repo:    repo,
		caps:    caps,
		reaper:  reaper,
		emitter: emitter,
		nowF:    time.Now,
	}
}

// Admit grants the account a seat and returns the new session, or returns
// *SeatLimitError when every seat is taken. A reap failure is logged and
// admission proceeds; a count failure denies admission with ErrStoreUnavailable.
func (c *AdmissionController) Admit(ctx context.Context, accountID, deviceDescriptor string) (*domain.Session, error) {
	maxLogins := c.caps.MaxLogins(ctx, accountID)

	if _, err := c.reaper.Reap(ctx); err != nil {
		log.Printf("admission: reap before admit failed: %v", err)
	}

	count, err := c.repo.CountActive(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: count seats for %s: %v", ErrStoreUnavailable, accountID, err)
	}
	if count >= maxLogins {
		rejection := &SeatLimitError{Limit: maxLogins}
		events.EmitAsync(c.emitter, &events.Event{
			AccountID:        accountID,
			EventType:        events.TypeRejected,
			DeviceDescriptor: deviceDescriptor,
			Detail:           rejection.Error(),
			CreatedAt:        c.nowF().UTC(),
		})
		return nil, rejection
	}

	now := c.nowF().UTC()
	sess := &domain.Session{
		ID:               uuid.New().String(),
		AccountID:        accountID,
		DeviceDescriptor: deviceDescriptor,
		LastActivity:     now,
		CreatedAt:        now,
	}
	if err := c.repo.Insert(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: insert session for %s: %v", ErrStoreUnavailable, accountID, err)
	}

	events.EmitAsync(c.emitter, &events.Event{
		SessionID:        sess.ID,
		AccountID:        accountID,
		EventType:        events.TypeAdmitted,
		DeviceDescriptor: deviceDescriptor,
		CreatedAt:        now,
	})
	return sess, nil
}
