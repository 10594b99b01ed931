package authsvc

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidUsername reports a username that is too short, blank, or taken.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidEmail reports an email that is malformed or taken.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword reports a password that violates the policy.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountLocked is returned while a username is locked out, whether
	// or not the account exists.
	ErrAccountLocked = errors.New("account temporarily blocked due to multiple failed login attempts")

	// ErrInvalidRefreshToken covers unknown, revoked and expired refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrInvalidResetToken covers unknown, used and expired reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrInvalidAccessToken is returned by ValidateAccess for any rejected token.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrForbidden is returned when a valid token lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited reports an exhausted request bucket.
	ErrRateLimited = errors.New("too many requests")

	// ErrConfiguration is wrapped by every startup validation failure.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInternal hides unexpected backend or signing failures from callers.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned when a nil or closed engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError is a field-level input failure. It unwraps to one of
// ErrInvalidUsername, ErrInvalidEmail or ErrInvalidPassword.
type ValidationError struct {
	Field   string
	Message string
	// Conflict is set when the value is well-formed but already taken.
	Conflict bool
	kind     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.kind
}

func invalidUsername(msg string) error {
	return &ValidationError{Field: "username", Message: msg, kind: ErrInvalidUsername}
}

func invalidEmail(msg string) error {
	return &ValidationError{Field: "email", Message: msg, kind: ErrInvalidEmail}
}

func alreadyInUse(field string) error {
	kind := ErrInvalidUsername
	if field == "email" {
		kind = ErrInvalidEmail
	}
	return &ValidationError{Field: field, Message: "The " + field + " is already in use", Conflict: true, kind: kind}
}

func invalidPassword(msg string) error {
	return &ValidationError{Field: "password", Message: msg, kind: ErrInvalidPassword}
}

// RateLimitError carries the time until the bucket refills. It unwraps to
// ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}
