// Package errors provides coded domain errors shared across services and
// transports. Services wrap store/driver failures into a stable code; the
// HTTP layer maps codes to status lines without ever leaking driver text.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	// CodeInvalidInput marks malformed or policy-violating caller input.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound marks a missing record (unknown identity, absent row).
	CodeNotFound Code = "not_found"

	// CodeConflict marks a uniqueness violation or an illegal state
	// transition (duplicate identity, re-register on a registered session).
	CodeConflict Code = "conflict"

	// CodeUnauthorized marks a failed credential check.
	CodeUnauthorized Code = "unauthorized"

	// CodeRateLimited marks a request rejected by a lockout or throttle.
	CodeRateLimited Code = "rate_limited"

	// CodeTransient marks a store that was unreachable or overloaded.
	// Safe for the client to retry unchanged.
	CodeTransient Code = "transient"

	// CodeInternal marks everything else. Not retryable by contract.
	CodeInternal Code = "internal"
)

// Error is a coded error. Msg is safe to log; only the code crosses the
// service boundary.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without an underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// GetCode extracts the code from err, walking the wrap chain. Uncoded errors
// report CodeInternal.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// ToHTTPStatus maps a code to the status the HTTP layer should write.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTransient, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
