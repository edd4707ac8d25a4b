package service

import (
	"context"
	"time"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
	"identityd/pkg/platform/audit"
)

const birthDateLayout = "2006-01-02"

// Register creates the durable user record and promotes the session. The
// insert completes before the promotion, so the only inconsistency window is
// a durably-registered user whose session cache has not caught up; a
// subsequent Login heals that.
func (s *Service) Register(ctx context.Context, token string, req models.RegisterRequest) (models.Outcome, error) {
	birthDate, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		return models.Outcome{}, dErrors.New(dErrors.CodeInvalidInput, "birth_date must be YYYY-MM-DD")
	}

	token, state, created, err := s.resolveSession(ctx, token)
	if err != nil {
		return models.Outcome{}, err
	}

	// A registered session never silently reverts; a second Register is
	// rejected outright, not replayed.
	if state.Registered() {
		s.emit(ctx, audit.CategorySecurity, audit.ActionRegisterConflict, "", req.Username, "session already registered")
		return models.Outcome{}, dErrors.New(dErrors.CodeConflict, "session already registered")
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "password hash failed",
			"op", "register",
			"error", err.Error(),
		)
		return models.Outcome{}, err
	}

	userID, err := models.NewUserID()
	if err != nil {
		return models.Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "mint user id")
	}

	user := models.User{
		ID:           userID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		BirthDate:    birthDate,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			// The store is the authority on uniqueness; the session is
			// left untouched.
			s.emit(ctx, audit.CategorySecurity, audit.ActionRegisterConflict, "", req.Username, "identity taken")
			return models.Outcome{}, err
		}
		s.logger.ErrorContext(ctx, "user insert failed",
			"op", "register",
			"store", "user",
			"error", err.Error(),
		)
		return models.Outcome{}, err
	}

	if err := s.sessions.WriteState(ctx, token, models.StateRegistered); err != nil {
		s.logger.ErrorContext(ctx, "session promotion failed after durable insert",
			"op", "register",
			"store", "session",
			"user_id", user.ID,
			"error", err.Error(),
		)
		return models.Outcome{}, err
	}

	s.emit(ctx, audit.CategoryOperations, audit.ActionUserRegistered, user.ID, req.Username, "")
	return models.Outcome{
		Token:     token,
		State:     models.StateRegistered,
		SetCookie: created,
	}, nil
}
