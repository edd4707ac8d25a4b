// Package handler is the thin HTTP layer over the auth service: JSON
// decoding, input validation, cookie issuance, and error translation. No
// business logic lives here.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"identityd/internal/identity/models"
	"identityd/internal/platform/metrics"
	"identityd/internal/platform/middleware"
	dErrors "identityd/pkg/domain-errors"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_id"

// Service defines the auth operations the handler delegates to.
type Service interface {
	Register(ctx context.Context, token string, req models.RegisterRequest) (models.Outcome, error)
	Login(ctx context.Context, token string, req models.LoginRequest) (models.Outcome, error)
	Logout(ctx context.Context, token string) (models.Outcome, error)
}

// Handler handles the identity endpoints.
type Handler struct {
	auth       Service
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sessionTTL time.Duration
}

// New creates an identity Handler. sessionTTL drives the cookie max-age and
// must match the session store TTL.
func New(auth Service, logger *slog.Logger, m *metrics.Metrics, sessionTTL time.Duration) *Handler {
	return &Handler{
		auth:       auth,
		logger:     logger,
		metrics:    m,
		sessionTTL: sessionTTL,
	}
}

// Register mounts the auth routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.Device)
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "register", dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := validateRegisterRequest(req); err != nil {
		h.writeError(w, r, "register", err)
		return
	}

	outcome, err := h.auth.Register(ctx, h.sessionToken(r), req)
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}
	h.writeOutcome(w, "register", outcome)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "login", dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.Identity == "" || req.Password == "" {
		h.writeError(w, r, "login", dErrors.New(dErrors.CodeInvalidInput, "identity and password are required"))
		return
	}

	outcome, err := h.auth.Login(ctx, h.sessionToken(r), req)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	h.writeOutcome(w, "login", outcome)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.auth.Logout(r.Context(), h.sessionToken(r))
	if err != nil {
		h.writeError(w, r, "logout", err)
		return
	}
	h.writeOutcome(w, "logout", outcome)
}

// sessionToken extracts the token from the session cookie, if any.
func (h *Handler) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}

// setSessionCookie issues the cookie directive the core produced.
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) writeOutcome(w http.ResponseWriter, op string, outcome models.Outcome) {
	if outcome.SetCookie {
		h.setSessionCookie(w, outcome.Token)
	}
	h.metrics.ObserveOperation(op, "ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"state": outcome.State.String(),
	})
}

// writeError translates a coded error into the JSON error envelope. Raw
// driver text stays in the logs.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := dErrors.GetCode(err)
	if status := dErrors.ToHTTPStatus(code); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"op", op,
			"error", err.Error(),
		)
	}
	h.metrics.ObserveOperation(op, string(code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": string(code),
	})
}
