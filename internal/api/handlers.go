// Package api exposes the session admission subsystem over HTTP so client
// processes sharing an account coordinate through the service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	sessiondomain "invoicing-session-control/internal/session/domain"
	"invoicing-session-control/internal/session/service"
)

// Admitter decides whether a login gets a seat.
type Admitter interface {
	Admit(ctx context.Context, accountID, deviceDescriptor string) (*sessiondomain.Session, error)
}

// SessionStore is the subset of the session repository the handlers need.
type SessionStore interface {
	UpdateActivity(ctx context.Context, sessionID, accountID string, at time.Time) error
	Delete(ctx context.Context, sessionID, accountID string) error
	ListByAccount(ctx context.Context, accountID string) ([]*sessiondomain.Session, error)
}

// LicenseReader answers license questions for an account.
type LicenseReader interface {
	IsValid(ctx context.Context, accountID string) bool
	MaxLogins(ctx context.Context, accountID string) int
	DaysRemaining(ctx context.Context, accountID string) int
}

// Pinger reports backing-store reachability for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	admission Admitter
	sessions  SessionStore
	licenses  LicenseReader
	pinger    Pinger
}

// NewHandler creates an HTTP handler over the admission controller, session
// repository, and license registry. pinger may be nil; health then skips the DB ping.
func NewHandler(admission Admitter, sessions SessionStore, licenses LicenseReader, pinger Pinger) *Handler {
	return &Handler{admission: admission, sessions: sessions, licenses: licenses, pinger: pinger}
}

type admitRequest struct {
	AccountID        string `json:"accountId"`
	DeviceDescriptor string `json:"deviceDescriptor"`
}

type sessionResponse struct {
	SessionID        string    `json:"sessionId"`
	AccountID        string    `json:"accountId"`
	DeviceDescriptor string    `json:"deviceDescriptor,omitempty"`
	LastActivity     time.Time `json:"lastActivity"`
	CreatedAt        time.Time `json:"createdAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// AdmitSession handles POST /v1/sessions: the admission decision.
// 201 with the new session, 403 when the seat limit is reached (the body
// carries the user-facing reason), 503 when the store is degraded.
func (h *Handler) AdmitSession(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	if !accountAllowed(r.Context(), req.AccountID) {
		writeError(w, http.StatusForbidden, "token is not valid for this account")
		return
	}

	sess, err := h.admission.Admit(r.Context(), req.AccountID, req.DeviceDescriptor)
	if err != nil {
		var limitErr *service.SeatLimitError
		switch {
		case errors.As(err, &limitErr):
			writeError(w, http.StatusForbidden, limitErr.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "session store unavailable, try again")
		default:
			log.Printf("api: admit failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

type heartbeatRequest struct {
	AccountID string `json:"accountId"`
}

// Heartbeat handles POST /v1/sessions/{id}/heartbeat: refreshes liveness.
// Always 204 for a well-formed request; a missing session is a no-op and a
// store failure is logged and swallowed (the next tick self-heals).
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	if !accountAllowed(r.Context(), req.AccountID) {
		writeError(w, http.StatusForbidden, "token is not valid for this account")
		return
	}
	if err := h.sessions.UpdateActivity(r.Context(), sessionID, req.AccountID, time.Now().UTC()); err != nil {
		log.Printf("api: heartbeat for session %s failed: %v", sessionID, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSession handles DELETE /v1/sessions/{id}?accountId=...: explicit
// logout. Deletion is idempotent, so an absent session still returns 204.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	if !accountAllowed(r.Context(), accountID) {
		writeError(w, http.StatusForbidden, "token is not valid for this account")
		return
	}
	if err := h.sessions.Delete(r.Context(), sessionID, accountID); err != nil {
		// Fail-open: the reaper collects the leftover record.
		log.Printf("api: delete session %s failed: %v", sessionID, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /v1/accounts/{id}/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]
	if !accountAllowed(r.Context(), accountID) {
		writeError(w, http.StatusForbidden, "token is not valid for this account")
		return
	}
	sessions, err := h.sessions.ListByAccount(r.Context(), accountID)
	if err != nil {
		log.Printf("api: list sessions for %s failed: %v", accountID, err)
		writeError(w, http.StatusServiceUnavailable, "session store unavailable, try again")
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

type licenseResponse struct {
	Valid         bool `json:"valid"`
	MaxLogins     int  `json:"maxLogins"`
	DaysRemaining int  `json:"daysRemaining"`
}

// GetLicense handles GET /v1/accounts/{id}/license: the seat cap and expiry
// summary the dashboard shows on the account page.
func (h *Handler) GetLicense(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]
	if !accountAllowed(r.Context(), accountID) {
		writeError(w, http.StatusForbidden, "token is not valid for this account")
		return
	}
	ctx := r.Context()
	writeJSON(w, http.StatusOK, licenseResponse{
		Valid:         h.licenses.IsValid(ctx, accountID),
		MaxLogins:     h.licenses.MaxLogins(ctx, accountID),
		DaysRemaining: h.licenses.DaysRemaining(ctx, accountID),
	})
}

// Health handles GET /healthz for load balancers and CI.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.PingContext(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toSessionResponse(s *sessiondomain.Session) sessionResponse {
	return sessionResponse{
		SessionID:        s.ID,
		AccountID:        s.AccountID,
		DeviceDescriptor: s.DeviceDescriptor,
		LastActivity:     s.LastActivity,
		CreatedAt:        s.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
