// Package heartbeat renews session liveness on a fixed interval for the
// lifetime of the client process holding the session.
package heartbeat

import (
	"context"
	"log"
	"sync"
	"time"
)

// tickTimeout bounds each activity update so a slow store cannot back up the ticker.
const tickTimeout = 10 * time.Second

// ActivityUpdater refreshes a session's last-activity timestamp.
type ActivityUpdater interface {
	UpdateActivity(ctx context.Context, sessionID, accountID string, at time.Time) error
}

// Emitter starts per-session heartbeat tickers. A tick failure is logged and
// ignored: the session self-heals on the next successful tick, or the reaper
// collects it once ticks stop entirely.
type Emitter struct {
	updater  ActivityUpdater
	interval time.Duration
	nowF     func() time.Time
}

// NewEmitter returns an Emitter that refreshes liveness every interval.
func NewEmitter(updater ActivityUpdater, interval time.Duration) *Emitter {
	return &Emitter{
		updater:  updater,
		interval: interval,
		nowF:     time.Now,
	}
}

// Start begins heartbeating for the session and returns a stop function. The
// ticker runs until stop is called; it is not paused when the client goes
// idle. stop is safe to call more than once.
func (e *Emitter) Start(sessionID, accountID string) (stop func()) {
	done := make(chan struct{})
	go e.run(sessionID, accountID, done)

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

func (e *Emitter) run(sessionID, accountID string, done <-chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
			if err := e.updater.UpdateActivity(ctx, sessionID, accountID, e.nowF().UTC()); err != nil {
				log.Printf("heartbeat: refresh for session %s failed: %v", sessionID, err)
			}
			cancel()
		}
	}
}
