package models

import "time"

// RememberToken is the persisted half of a remember-me credential. Only the
// keyed hash of the raw cookie value is stored; the raw value is handed to
// the client exactly once. One row per user: reissuing replaces the prior
// lineage.
type RememberToken struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its deadline. Resolving a token
// never extends ExpiresAt.
func (t *RememberToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
