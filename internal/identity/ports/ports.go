// Package ports defines the interfaces the auth service composes. Store
// implementations live under store/; hashing under password/. Keeping the
// contracts here lets service tests run against memory implementations and
// handler tests against generated mocks.
package ports

import (
	"context"
	"time"

	"identityd/internal/identity/models"
	"identityd/pkg/platform/audit"
)

// SessionStore is the ephemeral keyed cache of session records. A token that
// is missing, expired, or malformed reads as an invalid session
// (dErrors.CodeInvalidInput); an unreachable store reads as transient
// (dErrors.CodeTransient). The two are never conflated.
type SessionStore interface {
	// ResolveOrCreate returns the state stored under token if it is present
	// and unexpired; otherwise it mints a fresh anonymous session and
	// reports created=true.
	ResolveOrCreate(ctx context.Context, token string) (newToken string, state models.State, created bool, err error)

	// ReadState returns the stored state without refreshing the TTL.
	ReadState(ctx context.Context, token string) (models.State, error)

	// WriteState overwrites the state and refreshes the TTL.
	WriteState(ctx context.Context, token string, state models.State) error

	// Delete removes the session record. Deleting an absent token is not an
	// error.
	Delete(ctx context.Context, token string) error
}

// UserStore is the durable credential store. It is the sole authority for
// identity uniqueness.
type UserStore interface {
	// Insert persists a new user record. A username or email collision
	// returns a conflict code; session state never substitutes for this
	// check.
	Insert(ctx context.Context, user models.User) error

	// FindByIdentity matches identity exactly against username or email.
	FindByIdentity(ctx context.Context, identity string) (models.User, error)
}

// PasswordHasher derives and verifies password hashes off the request
// goroutine.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, encoded string) (bool, error)
}

// LockoutStore tracks failed login attempts per identity inside a rolling
// window.
type LockoutStore interface {
	// RecordFailure increments the failure counter and returns the new count.
	RecordFailure(ctx context.Context, identity string, window time.Duration) (int, error)

	// Failures returns the current count without mutating it.
	Failures(ctx context.Context, identity string) (int, error)

	// Clear resets the counter after a successful login.
	Clear(ctx context.Context, identity string) error
}

// AuditPublisher emits audit events for identity operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
