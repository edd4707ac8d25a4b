// Package models holds the identity domain types: the session state machine,
// the durable user record, and the request/outcome shapes exchanged between
// the HTTP layer and the auth service.
package models

import (
	"time"
)

// State is the session authentication state as stored in the session cache.
// The wire values are fixed; changing them invalidates every live session.
type State int

const (
	// StateAnonymous is the initial state assigned when a session is minted.
	StateAnonymous State = 1

	// StateRegistered is reached only through a successful Register or Login.
	StateRegistered State = 2
)

// ParseState maps a stored integer back onto the closed state set. Anything
// outside the set is reported as unknown so reads classify it as an invalid
// session instead of trusting a corrupt entry.
func ParseState(raw int) (State, bool) {
	switch State(raw) {
	case StateAnonymous, StateRegistered:
		return State(raw), true
	default:
		return 0, false
	}
}

// Registered reports whether the session has been promoted.
func (s State) Registered() bool { return s == StateRegistered }

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// User is the durable identity record. Identity fields are immutable after
// creation; uniqueness of username and email is enforced by the credential
// store, never by session state.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	BirthDate    time.Time
	CreatedAt    time.Time
}

// RegisterRequest carries the fields captured at registration. Password is
// transient input: hashed, then discarded.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	BirthDate string `json:"birth_date"`
	Email     string `json:"email"`
}

// LoginRequest carries a login credential. Identity matches either username
// or email, exact match.
type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// Outcome is the single terminal result of a use case: the session token the
// client should hold and whether the transport must (re)issue the cookie.
type Outcome struct {
	Token     string
	State     State
	SetCookie bool
}
