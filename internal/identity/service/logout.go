package service

import (
	"context"

	"identityd/internal/identity/models"
	"identityd/pkg/platform/audit"
)

// Logout deletes whatever session the client presented and mints a brand-new
// anonymous one. It never rejects: an invalid or absent token just means
// there is nothing to delete.
func (s *Service) Logout(ctx context.Context, token string) (models.Outcome, error) {
	if token != "" {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.ErrorContext(ctx, "session delete failed",
				"op", "logout",
				"store", "session",
				"error", err.Error(),
			)
			return models.Outcome{}, err
		}
	}

	fresh, state, _, err := s.sessions.ResolveOrCreate(ctx, "")
	if err != nil {
		s.logger.ErrorContext(ctx, "session mint failed",
			"op", "logout",
			"store", "session",
			"error", err.Error(),
		)
		return models.Outcome{}, err
	}

	s.emit(ctx, audit.CategoryOperations, audit.ActionLoggedOut, "", "", "")
	return models.Outcome{
		Token:     fresh,
		State:     state,
		SetCookie: true,
	}, nil
}
