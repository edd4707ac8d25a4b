package handler

import (
	"time"

	"github.com/asaskevich/govalidator"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
)

const (
	minPasswordLength = 8
	birthDateLayout   = "2006-01-02"
)

func validateRegisterRequest(req models.RegisterRequest) error {
	if !govalidator.StringLength(req.Username, "3", "32") {
		return dErrors.New(dErrors.CodeInvalidInput, "username must be 3-32 characters")
	}
	if !govalidator.StringLength(req.Email, "1", "255") || !govalidator.IsEmail(req.Email) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}
	if _, err := time.Parse(birthDateLayout, req.BirthDate); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "birth_date must be formatted as YYYY-MM-DD")
	}
	return nil
}
