package service

import (
	"context"
	"fmt"
	"time"

	"invoicing-session-control/internal/events"
)

// StaleDeleter is the minimal session repository needed by the reaper.
type StaleDeleter interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper removes sessions whose liveness window has lapsed, for every
// account. It runs before each admission and on a server ticker, so orphans
// left by crashed clients self-heal without any one account logging in.
type Reaper struct {
	repo      StaleDeleter
	threshold time.Duration
	emitter   events.Emitter
	nowF      func() time.Time
}

// NewReaper returns a Reaper that deletes sessions idle longer than threshold.
// emitter may be nil to disable audit events.
func NewReaper(repo StaleDeleter, threshold time.Duration, emitter events.Emitter) *Reaper {
	return &Reaper{
		repo:      repo,
		threshold: threshold,
		emitter:   emitter,
		nowF:      time.Now,
	}
}

// Reap deletes every session, regardless of account, whose last activity is
// older than the staleness threshold. Returns the number of sessions removed.
func (r *Reaper) Reap(ctx context.Context) (int64, error) {
	cutoff := r.nowF().UTC().Add(-r.threshold)
	n, err := r.repo.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reap sessions older than %s: %w", r.threshold, err)
	}
	if n > 0 {
		events.EmitAsync(r.emitter, &events.Event{
			EventType: events.TypeReaped,
			Detail:    fmt.Sprintf("%d stale session(s) removed", n),
			CreatedAt: r.nowF().UTC(),
		})
	}
	return n, nil
}
