package models

import (
	"fmt"

	"github.com/google/uuid"
)

// NewSessionToken mints an opaque session token. UUIDv7 keeps tokens
// time-ordered and collision-resistant across instances.
func NewSessionToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("mint session token: %w", err)
	}
	return id.String(), nil
}

// NewUserID mints the stable id for a new user record.
func NewUserID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("mint user id: %w", err)
	}
	return id.String(), nil
}
