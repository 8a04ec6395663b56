package models

import "time"

// CsrfToken is a single-use, time-bounded credential tying a state-changing
// request to a legitimately rendered page. UserID is nil for tokens issued
// to anonymous sessions. The row is deleted the moment verification succeeds.
type CsrfToken struct {
	Token     string
	UserID    *string
	ExpiresAt time.Time
	CreatedAt time.Time
}
