package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"invoicing-session-control/internal/security"
	sessiondomain "invoicing-session-control/internal/session/domain"
	"invoicing-session-control/internal/session/service"
)

type fakeAdmitter struct {
	err  error
	last *sessiondomain.Session
}

func (a *fakeAdmitter) Admit(ctx context.Context, accountID, deviceDescriptor string) (*sessiondomain.Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.last = &sessiondomain.Session{
		ID:               "sess-1",
		AccountID:        accountID,
		DeviceDescriptor: deviceDescriptor,
		LastActivity:     now,
		CreatedAt:        now,
	}
	return a.last, nil
}

type fakeSessionStore struct {
	mu        sync.Mutex
	activity  map[string]time.Time
	deleted   []string
	updateErr error
	deleteErr error
	listErr   error
	sessions  []*sessiondomain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{activity: make(map[string]time.Time)}
}

func (s *fakeSessionStore) UpdateActivity(ctx context.Context, sessionID, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.activity[sessionID] = at
	return nil
}

func (s *fakeSessionStore) Delete(ctx context.Context, sessionID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func (s *fakeSessionStore) ListByAccount(ctx context.Context, accountID string) ([]*sessiondomain.Session, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sessions, nil
}

type fakeLicenses struct {
	valid bool
	max   int
	days  int
}

func (l fakeLicenses) IsValid(ctx context.Context, accountID string) bool      { return l.valid }
func (l fakeLicenses) MaxLogins(ctx context.Context, accountID string) int     { return l.max }
func (l fakeLicenses) DaysRemaining(ctx context.Context, accountID string) int { return l.days }

func newTestRouter(admitter Admitter, store SessionStore) http.Handler {
	h := NewHandler(admitter, store, fakeLicenses{valid: true, max: 3, days: 30}, nil)
	return h.SetupRoutes(nil)
}

func TestAdmitSession_Created(t *testing.T) {
	admitter := &fakeAdmitter{}
	router := newTestRouter(admitter, newFakeSessionStore())

	body, _ := json.Marshal(admitRequest{AccountID: "acct-1", DeviceDescriptor: "Firefox on Linux"})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "sess-1" || resp.AccountID != "acct-1" {
		t.Errorf("response = %+v, want sess-1/acct-1", resp)
	}
}

func TestAdmitSession_SeatLimitIs403WithReason(t *testing.T) {
	admitter := &fakeAdmitter{err: &service.SeatLimitError{Limit: 2}}
	router := newTestRouter(admitter, newFakeSessionStore())

	body, _ := json.Marshal(admitRequest{AccountID: "acct-1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := "Maximum 2 simultaneous login(s) allowed. Please log out from another device."
	if resp.Error != want {
		t.Errorf("error = %q, want %q", resp.Error, want)
	}
}

func TestAdmitSession_StoreDownIs503(t *testing.T) {
	admitter := &fakeAdmitter{err: service.ErrStoreUnavailable}
	router := newTestRouter(admitter, newFakeSessionStore())

	body, _ := json.Marshal(admitRequest{AccountID: "acct-1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAdmitSession_MissingAccountIs400(t *testing.T) {
	router := newTestRouter(&fakeAdmitter{}, newFakeSessionStore())

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHeartbeat_NoContentAndIgnoresStoreError(t *testing.T) {
	store := newFakeSessionStore()
	router := newTestRouter(&fakeAdmitter{}, store)

	body, _ := json.Marshal(heartbeatRequest{AccountID: "acct-1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess-1/heartbeat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := store.activity["sess-1"]; !ok {
		t.Error("heartbeat should update activity")
	}

	store.updateErr = errors.New("store down")
	body, _ = json.Marshal(heartbeatRequest{AccountID: "acct-1"})
	req = httptest.NewRequest(http.MethodPost, "/v1/sessions/sess-1/heartbeat", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d on store error, want 204 (fail-open)", rec.Code)
	}
}

func TestDeleteSession_IdempotentNoContent(t *testing.T) {
	store := newFakeSessionStore()
	router := newTestRouter(&fakeAdmitter{}, store)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess-unknown?accountId=acct-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete %d: status = %d, want 204", i+1, rec.Code)
		}
	}
}

func TestGetLicense(t *testing.T) {
	router := newTestRouter(&fakeAdmitter{}, newFakeSessionStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acct-1/license", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp licenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.MaxLogins != 3 || resp.DaysRemaining != 30 {
		t.Errorf("license = %+v, want valid/3/30", resp)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeAdmitter{}, newFakeSessionStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func newAuthRouter(t *testing.T) (http.Handler, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := security.NewTokenVerifier(&key.PublicKey, "invoicing-auth", "invoicing-api")
	h := NewHandler(&fakeAdmitter{}, newFakeSessionStore(), fakeLicenses{valid: true, max: 3}, nil)
	return h.SetupRoutes(verifier), key
}

func signTestToken(t *testing.T, key *ecdsa.PrivateKey, accountID string) string {
	t.Helper()
	now := time.Now().UTC()
	claims := security.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "invoicing-auth",
			Audience:  jwt.ClaimStrings{"invoicing-api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
		AccountID: accountID,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuth_MissingTokenIs401(t *testing.T) {
	router, _ := newAuthRouter(t)

	body, _ := json.Marshal(admitRequest{AccountID: "acct-1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_TokenScopesAccount(t *testing.T) {
	router, key := newAuthRouter(t)
	token := signTestToken(t, key, "acct-1")

	// Matching account admits.
	body, _ := json.Marshal(admitRequest{AccountID: "acct-1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d for own account, want 201", rec.Code)
	}

	// Another account's seat is off limits.
	body, _ = json.Marshal(admitRequest{AccountID: "acct-2"})
	req = httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d for foreign account, want 403", rec.Code)
	}
}

func TestHealth_SkipsAuth(t *testing.T) {
	router, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without a token", rec.Code)
	}
}
