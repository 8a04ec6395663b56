package models

import "time"

// SubjectKey scopes an attempt counter or lock to a (client IP, identifier)
// pair. A compound key avoids one noisy IP locking out unrelated accounts
// behind NAT, and avoids a distributed attacker bypassing a per-account lock.
type SubjectKey struct {
	IPAddress  string
	Identifier string
}

// LoginAttemptRecord tracks consecutive failed logins for one subject key.
// The counter is monotonically non-decreasing until reset; LockedUntil set
// implies the counter reached the configured threshold.
type LoginAttemptRecord struct {
	SubjectKey
	Attempts    int
	LockedUntil *time.Time
	UpdatedAt   time.Time
}

// Locked reports whether the record's lockout deadline is still in force
// at the given instant. An elapsed window counts as unlocked even while
// the counter is still at threshold.
func (r *LoginAttemptRecord) Locked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}
