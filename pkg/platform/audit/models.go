// Package audit defines the audit event model emitted from identity flows.
// Events are transport-agnostic; publishers fan them out to Kafka or keep
// them in memory for tests.
package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose, enabling
// different routing and retention downstream.
type EventCategory string

const (
	// CategorySecurity covers events feeding security monitoring:
	// failed logins, lockouts, registration conflicts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine visibility events: successful
	// registrations, logins, logouts.
	CategoryOperations EventCategory = "operations"
)

// Action names the identity operation an event records.
type Action string

const (
	ActionUserRegistered   Action = "user_registered"
	ActionRegisterConflict Action = "register_conflict"
	ActionLoginSucceeded   Action = "login_succeeded"
	ActionLoginFailed      Action = "login_failed"
	ActionLoginLockedOut   Action = "login_locked_out"
	ActionLoggedOut        Action = "logged_out"
)

// Event is emitted from domain logic to capture key identity actions.
// Identity carries the username or email involved; no password material or
// hashes ever appear here.
type Event struct {
	Category  EventCategory `json:"category"`
	Action    Action        `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"user_id,omitempty"`
	Identity  string        `json:"identity,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	// Device is a short browser/OS summary parsed from the User-Agent,
	// kept for forensic correlation of security events.
	Device string `json:"device,omitempty"`
	Reason string `json:"reason,omitempty"`
}
