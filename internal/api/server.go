package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"invoicing-session-control/internal/security"
)

// SetupRoutes configures all HTTP routes. verifier may be nil; the /v1 API is
// then unauthenticated (dev only).
func (h *Handler) SetupRoutes(verifier *security.TokenVerifier) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(TracingMiddleware)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	if verifier != nil {
		api.Use(AuthMiddleware(verifier))
	}

	api.HandleFunc("/sessions", h.AdmitSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.DeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/heartbeat", h.Heartbeat).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/sessions", h.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/license", h.GetLicense).Methods(http.MethodGet)

	return r
}
