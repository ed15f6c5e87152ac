package auth

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind classifies an authentication or authorization failure
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindInvalidCredentials
	KindTooManyAttempts
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindTooManyAttempts:
		return "too_many_attempts"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration_error"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the auth core and the guard
type Error struct {
	Kind    Kind
	Message string

	// RemainingAttempts is set on KindInvalidCredentials from a login
	RemainingAttempts int
	// RetryAfter is set on KindTooManyAttempts
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1
func (e *Error) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// NewError builds an Error of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// AsError extracts an *Error from err's chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, treating foreign errors as configuration errors
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindConfiguration
}

// IsKind reports whether err carries the given Kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func badRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func invalidCredentials(remaining int) *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid credentials", RemainingAttempts: remaining}
}

func tooManyAttempts(retryAfter time.Duration) *Error {
	return &Error{Kind: KindTooManyAttempts, Message: "too many failed login attempts", RetryAfter: retryAfter}
}

func unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func configurationError(message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Err: err}
}
