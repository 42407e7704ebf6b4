package identity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is returned for malformed input. Not retryable.
	ErrValidation = errors.New("invalid request")
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike, so callers cannot probe which emails exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited is the unwrap target of RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendInconsistency means a create reported a duplicate but
	// the follow-up lookup found no record. Retryable.
	ErrBackendInconsistency = errors.New("credential store inconsistency")
	// ErrSessionExpired means the refresh token is no longer usable and
	// the caller must authenticate from scratch.
	ErrSessionExpired = errors.New("session expired")
	// ErrServiceUnavailable means a backend call timed out or the
	// backend is down. Retryable.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrAccountDisabled is an exported account status rejection.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is an exported account status rejection.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDeleted is an exported account status rejection.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrRoleInvalid is returned when a registration names a role
	// outside the configured allow list.
	ErrRoleInvalid = errors.New("invalid account role")
	// ErrEngineNotReady is returned when an Engine method is called on
	// a nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError reports a denied call together with when the window
// reopens. It unwraps to ErrRateLimited so callers can branch with
// errors.Is without inspecting the type.
type RateLimitError struct {
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Millisecond))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
