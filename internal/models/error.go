package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication failure taxonomy
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrRateLimited        = errors.New("too many requests")
	ErrCsrfInvalid        = errors.New("csrf token invalid")

	// ErrStoreUnavailable indicates the durable store cannot be reached.
	// Lockout, rate-limit and CSRF checks fail closed on this error.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AccountLockedError indicates login is denied until the lockout deadline.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// AsAccountLocked unwraps err into an AccountLockedError if possible
func AsAccountLocked(err error) (*AccountLockedError, bool) {
	var locked *AccountLockedError
	if errors.As(err, &locked) {
		return locked, true
	}
	return nil, false
}
