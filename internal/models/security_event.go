package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Security event types
const (
	EventTypeFailedLogin       = "failed_login"
	EventTypeSuccessfulLogin   = "successful_login"
	EventTypeAccountLocked     = "account_locked"
	EventTypeAccountDisabled   = "account_disabled_login"
	EventTypeRateLimitExceeded = "rate_limit_exceeded"
	EventTypeCsrfTokenInvalid  = "csrf_token_invalid"
	EventTypeLogout            = "logout"
	EventTypeRegistration      = "registration"
	EventTypeSessionRestored   = "session_restored"
	EventTypeRememberRejected  = "remember_token_rejected"
)

// Event severities, ordered LOW < MEDIUM < HIGH < CRITICAL
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ValidSeverity reports whether s is a recognized severity level
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SecurityEvent is one append-only entry in the audit stream. Immutable
// once written; read back only by the admin surface.
type SecurityEvent struct {
	ID        uuid.UUID
	EventType string
	Severity  string
	IPAddress string
	UserID    *uuid.UUID
	Detail    EventDetail
	CreatedAt time.Time
}

// EventDetail holds additional context for security events (JSONB column)
type EventDetail map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *EventDetail) Scan(value interface{}) error {
	if value == nil {
		*d = make(EventDetail)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = EventDetail(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d EventDetail) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
