// Package service composes the session store, credential store, and password
// hasher into the three identity use cases. Each use case is a
// short-circuiting pipeline: resolve the session, apply the transition rules,
// perform the durable side effect, then write the session state back.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"identityd/internal/identity/models"
	"identityd/internal/identity/ports"
	"identityd/internal/platform/middleware"
	"identityd/pkg/platform/audit"
)

// Service is the auth orchestrator. All stores are injected; it holds no
// mutable state of its own, so one instance serves concurrent requests.
type Service struct {
	sessions ports.SessionStore
	users    ports.UserStore
	hasher   ports.PasswordHasher
	lockout  ports.LockoutStore
	auditor  ports.AuditPublisher
	logger   *slog.Logger

	maxFailures   int
	failureWindow time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

// WithLockout enables the brute-force guard on Login: once maxFailures
// failed attempts accumulate for an identity within window, further attempts
// are rejected until the window lapses.
func WithLockout(store ports.LockoutStore, maxFailures int, window time.Duration) Option {
	return func(s *Service) {
		s.lockout = store
		s.maxFailures = maxFailures
		s.failureWindow = window
	}
}

func New(sessions ports.SessionStore, users ports.UserStore, hasher ports.PasswordHasher, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}

	svc := &Service{
		sessions: sessions,
		users:    users,
		hasher:   hasher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// emit sends an audit event enriched with request context. Auditing is
// best-effort and never fails a use case.
func (s *Service) emit(ctx context.Context, category audit.EventCategory, action audit.Action, userID, identity, reason string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Category:  category,
		Action:    action,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Identity:  identity,
		RequestID: middleware.GetRequestID(ctx),
		Device:    middleware.GetDevice(ctx),
		Reason:    reason,
	})
}

// resolveSession applies the orchestrator rule for supplied tokens: a stale
// or missing token is never an error by itself, only the trigger to mint a
// fresh anonymous session.
func (s *Service) resolveSession(ctx context.Context, token string) (string, models.State, bool, error) {
	resolved, state, created, err := s.sessions.ResolveOrCreate(ctx, token)
	if err != nil {
		s.logger.ErrorContext(ctx, "session resolve failed",
			"store", "session",
			"error", err.Error(),
		)
		return "", 0, false, err
	}
	return resolved, state, created, nil
}
