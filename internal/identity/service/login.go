package service

import (
	"context"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
	"identityd/pkg/platform/audit"
)

// Login verifies a credential and promotes the session regardless of its
// prior state. Neither an unknown identity nor a password mismatch mutates
// anything.
func (s *Service) Login(ctx context.Context, token string, req models.LoginRequest) (models.Outcome, error) {
	token, _, created, err := s.resolveSession(ctx, token)
	if err != nil {
		return models.Outcome{}, err
	}

	if err := s.checkLockout(ctx, req.Identity); err != nil {
		return models.Outcome{}, err
	}

	user, err := s.users.FindByIdentity(ctx, req.Identity)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.recordFailure(ctx, req.Identity)
			s.emit(ctx, audit.CategorySecurity, audit.ActionLoginFailed, "", req.Identity, "unknown identity")
			return models.Outcome{}, err
		}
		s.logger.ErrorContext(ctx, "identity lookup failed",
			"op", "login",
			"store", "user",
			"error", err.Error(),
		)
		return models.Outcome{}, err
	}

	ok, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "password verify failed",
			"op", "login",
			"error", err.Error(),
		)
		return models.Outcome{}, err
	}
	if !ok {
		s.recordFailure(ctx, req.Identity)
		s.emit(ctx, audit.CategorySecurity, audit.ActionLoginFailed, user.ID, req.Identity, "password mismatch")
		return models.Outcome{}, dErrors.New(dErrors.CodeUnauthorized, "password mismatch")
	}

	s.clearFailures(ctx, req.Identity)

	if err := s.sessions.WriteState(ctx, token, models.StateRegistered); err != nil {
		s.logger.ErrorContext(ctx, "session promotion failed",
			"op", "login",
			"store", "session",
			"user_id", user.ID,
			"error", err.Error(),
		)
		return models.Outcome{}, err
	}

	s.emit(ctx, audit.CategoryOperations, audit.ActionLoginSucceeded, user.ID, req.Identity, "")
	return models.Outcome{
		Token:     token,
		State:     models.StateRegistered,
		SetCookie: created,
	}, nil
}

// checkLockout rejects the attempt once the failure threshold is crossed.
// Lockout store outages fail open: the guard protects against brute force,
// it must not take logins down with it.
func (s *Service) checkLockout(ctx context.Context, identity string) error {
	if s.lockout == nil {
		return nil
	}
	failures, err := s.lockout.Failures(ctx, identity)
	if err != nil {
		s.logger.WarnContext(ctx, "lockout check failed, failing open",
			"store", "lockout",
			"error", err.Error(),
		)
		return nil
	}
	if failures >= s.maxFailures {
		s.emit(ctx, audit.CategorySecurity, audit.ActionLoginLockedOut, "", identity, "too many failed attempts")
		return dErrors.New(dErrors.CodeRateLimited, "too many failed attempts")
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, identity string) {
	if s.lockout == nil {
		return
	}
	if _, err := s.lockout.RecordFailure(ctx, identity, s.failureWindow); err != nil {
		s.logger.WarnContext(ctx, "lockout record failed",
			"store", "lockout",
			"error", err.Error(),
		)
	}
}

func (s *Service) clearFailures(ctx context.Context, identity string) {
	if s.lockout == nil {
		return
	}
	if err := s.lockout.Clear(ctx, identity); err != nil {
		s.logger.WarnContext(ctx, "lockout clear failed",
			"store", "lockout",
			"error", err.Error(),
		)
	}
}
