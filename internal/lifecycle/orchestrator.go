// Package lifecycle binds identity-provider auth events to seat admission,
// heartbeating, and session teardown for one client process.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"invoicing-session-control/internal/events"
	"invoicing-session-control/internal/session/domain"
)

// teardownTimeout bounds the fire-and-forget delete issued on process teardown.
const teardownTimeout = 5 * time.Second

// State is the orchestrator's position in the session lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAdmitting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateAdmitting:
		return "admitting"
	case StateActive:
		return "active"
	default:
		return "unauthenticated"
	}
}

// AuthEventType labels identity-provider state changes.
type AuthEventType string

const (
	AuthSignedIn  AuthEventType = "signed-in"
	AuthSignedOut AuthEventType = "signed-out"
)

// AuthEvent is one identity-provider state change.
type AuthEvent struct {
	Type             AuthEventType
	AccountID        string
	DeviceDescriptor string
}

// IdentityProvider is the external auth collaborator. Credential handling and
// token issuance live entirely behind it.
type IdentityProvider interface {
	// SignOut ends the provider-side authentication, used to force sign-out
	// when admission is rejected and on explicit logout.
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers a callback for sign-in/sign-out events.
	OnAuthStateChange(fn func(AuthEvent))
}

// Admitter decides whether a login gets a seat.
type Admitter interface {
	Admit(ctx context.Context, accountID, deviceDescriptor string) (*domain.Session, error)
}

// SessionDeleter removes a session record from the shared store.
type SessionDeleter interface {
	Delete(ctx context.Context, sessionID, accountID string) error
}

// HeartbeatStarter starts liveness ticking for an admitted session.
type HeartbeatStarter interface {
	Start(sessionID, accountID string) (stop func())
}

// Orchestrator owns one client process's session: the cached session id and
// the heartbeat handle live on this instance, created on admission and torn
// down on logout, never in package state.
type Orchestrator struct {
	admitter   Admitter
	deleter    SessionDeleter
	idp        IdentityProvider
	heartbeats HeartbeatStarter
	emitter    events.Emitter

	mu            sync.Mutex
	state         State
	sessionID     string
	accountID     string
	stopHeartbeat func()
	// cancelPending marks a sign-out that arrived while an admission was in
	// flight; the admit path tears the fresh session down when it completes.
	cancelPending bool
}

// NewOrchestrator returns an Orchestrator in the unauthenticated state.
// emitter may be nil to disable audit events.
func NewOrchestrator(admitter Admitter, deleter SessionDeleter, idp IdentityProvider, heartbeats HeartbeatStarter, emitter events.Emitter) *Orchestrator {
	return &Orchestrator{
		admitter:   admitter,
		deleter:    deleter,
		idp:        idp,
		heartbeats: heartbeats,
		emitter:    emitter,
		state:      StateUnauthenticated,
	}
}

// Subscribe registers the orchestrator on the identity provider's auth-state
// stream. Sign-in drives admission; sign-out drives logout.
func (o *Orchestrator) Subscribe() {
	o.idp.OnAuthStateChange(func(ev AuthEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		switch ev.Type {
		case AuthSignedIn:
			if err := o.HandleSignedIn(ctx, ev.AccountID, ev.DeviceDescriptor); err != nil {
				log.Printf("lifecycle: sign-in for account %s not admitted: %v", ev.AccountID, err)
			}
		case AuthSignedOut:
			if err := o.Logout(ctx); err != nil {
				log.Printf("lifecycle: logout failed: %v", err)
			}
		}
	})
}

// HandleSignedIn runs admission for a fresh provider sign-in. On rejection the
// provider session is forcibly signed out and the rejection error is returned
// for the caller to surface; the orchestrator returns to unauthenticated.
func (o *Orchestrator) HandleSignedIn(ctx context.Context, accountID, deviceDescriptor string) error {
	o.mu.Lock()
	if o.state != StateUnauthenticated {
		o.mu.Unlock()
		return fmt.Errorf("sign-in while %s", o.state)
	}
	o.state = StateAdmitting
	o.cancelPending = false
	o.mu.Unlock()

	sess, err := o.admitter.Admit(ctx, accountID, deviceDescriptor)
	if err != nil {
		o.mu.Lock()
		o.state = StateUnauthenticated
		o.cancelPending = false
		o.mu.Unlock()
		if signOutErr := o.idp.SignOut(ctx); signOutErr != nil {
			log.Printf("lifecycle: forced sign-out failed: %v", signOutErr)
		}
		return err
	}

	o.mu.Lock()
	if o.cancelPending {
		// The user signed out while admission was in flight; release the seat
		// that was just taken instead of going active.
		o.cancelPending = false
		o.state = StateUnauthenticated
		o.mu.Unlock()
		if err := o.deleter.Delete(ctx, sess.ID, sess.AccountID); err != nil {
			log.Printf("lifecycle: post-sign-out session delete failed: %v", err)
		}
		return fmt.Errorf("signed out during admission")
	}
	o.state = StateActive
	o.sessionID = sess.ID
	o.accountID = sess.AccountID
	o.stopHeartbeat = o.heartbeats.Start(sess.ID, sess.AccountID)
	o.mu.Unlock()
	return nil
}

// Logout ends the active session: stop the heartbeat, delete the record, drop
// local state. Safe to call when no session is active.
func (o *Orchestrator) Logout(ctx context.Context) error {
	sessionID, accountID, ok := o.release()
	if !ok {
		return nil
	}
	if err := o.deleter.Delete(ctx, sessionID, accountID); err != nil {
		// The reaper collects the leftover record once its heartbeats lapse.
		log.Printf("lifecycle: session delete failed: %v", err)
	}
	events.EmitAsync(o.emitter, &events.Event{
		SessionID: sessionID,
		AccountID: accountID,
		EventType: events.TypeLogout,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Teardown handles process shutdown: the heartbeat stops synchronously and the
// delete is fired on a detached context so it can outlive the caller. An
// aborted delete is not retried; the reaper reclaims the seat.
func (o *Orchestrator) Teardown() {
	sessionID, accountID, ok := o.release()
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := o.deleter.Delete(ctx, sessionID, accountID); err != nil {
			log.Printf("lifecycle: teardown delete failed: %v", err)
		}
	}()
}

// release stops the heartbeat and clears the cached session, returning what
// was held. ok is false when no session was active.
func (o *Orchestrator) release() (sessionID, accountID string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateAdmitting {
		o.cancelPending = true
		return "", "", false
	}
	if o.state != StateActive {
		return "", "", false
	}
	if o.stopHeartbeat != nil {
		o.stopHeartbeat()
	}
	sessionID, accountID = o.sessionID, o.accountID
	o.state = StateUnauthenticated
	o.sessionID = ""
	o.accountID = ""
	o.stopHeartbeat = nil
	return sessionID, accountID, true
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SessionID returns the active session id, or "" when not active.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}
