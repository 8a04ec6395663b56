package models

import (
	"time"
)

// Account statuses
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is an authenticatable storefront account (a principal).
// FailedAttempts and LockedUntil are mutated only by the authentication
// flow, via atomic repository updates.
type User struct {
	ID             string
	Email          string
	Username       string
	PasswordHash   string
	Role           string // "customer" or "admin"
	Status         string // "active" or "disabled"
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether the account may authenticate at all.
// Disabled is orthogonal to lockout and is not lifted by time passing.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
