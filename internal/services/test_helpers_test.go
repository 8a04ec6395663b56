package services_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ewhitfield/storefront/internal/models"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// MockUserRepository implements the credential store contract for testing
type MockUserRepository struct {
	GetByIDFunc            func(ctx context.Context, id string) (*models.User, error)
	GetByIdentifierFunc    func(ctx context.Context, identifier string) (*models.User, error)
	RecordLoginFailureFunc func(ctx context.Context, id string, threshold int, lockFor time.Duration) (int, error)
	RecordLoginSuccessFunc func(ctx context.Context, id string, at time.Time) error
	CreateFunc             func(ctx context.Context, user *models.User) (*models.User, error)
	ExistsFunc             func(ctx context.Context, email, username string) (bool, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration) (int, error) {
	if m.RecordLoginFailureFunc != nil {
		return m.RecordLoginFailureFunc(ctx, id, threshold, lockFor)
	}
	return 1, nil
}

func (m *MockUserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	if m.RecordLoginSuccessFunc != nil {
		return m.RecordLoginSuccessFunc(ctx, id, at)
	}
	return nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, email, username)
	}
	return false, nil
}

// MockLockoutLedger implements the attempt-ledger contract for testing
type MockLockoutLedger struct {
	RecordFailureFunc func(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error)
	IsLockedFunc      func(ctx context.Context, key models.SubjectKey) (bool, *time.Time, error)
	ClearFunc         func(ctx context.Context, key models.SubjectKey) error
}

func (m *MockLockoutLedger) RecordFailure(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, key)
	}
	return &models.LoginAttemptRecord{SubjectKey: key, Attempts: 1, UpdatedAt: time.Now()}, nil
}

func (m *MockLockoutLedger) IsLocked(ctx context.Context, key models.SubjectKey) (bool, *time.Time, error) {
	if m.IsLockedFunc != nil {
		return m.IsLockedFunc(ctx, key)
	}
	return false, nil, nil
}

func (m *MockLockoutLedger) Clear(ctx context.Context, key models.SubjectKey) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, key)
	}
	return nil
}

// MockRequestLimiter implements the rate-limiter contract for testing
type MockRequestLimiter struct {
	AllowFunc func(ctx context.Context, ip, endpoint string) (bool, error)
}

func (m *MockRequestLimiter) Allow(ctx context.Context, ip, endpoint string) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, ip, endpoint)
	}
	return true, nil
}

// MockRememberTokens implements the remember-me contract for testing
type MockRememberTokens struct {
	IssueFunc     func(ctx context.Context, userID string) (string, error)
	ResolveFunc   func(ctx context.Context, rawToken string) (string, error)
	RevokeAllFunc func(ctx context.Context, userID string) error
}

func (m *MockRememberTokens) Issue(ctx context.Context, userID string) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, userID)
	}
	return "remember-token", nil
}

func (m *MockRememberTokens) Resolve(ctx context.Context, rawToken string) (string, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, rawToken)
	}
	return "", models.ErrUnauthorized
}

func (m *MockRememberTokens) RevokeAll(ctx context.Context, userID string) error {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, userID)
	}
	return nil
}

// MockSecurityEventRepository captures persisted security events
type MockSecurityEventRepository struct {
	mu      sync.Mutex
	events  []*models.SecurityEvent
	failAll bool
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, models.ErrStoreUnavailable
	}
	m.events = append(m.events, event)
	return event, nil
}

func (m *MockSecurityEventRepository) ListBySeverity(ctx context.Context, severity string, limit, offset int) ([]*models.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SecurityEvent
	for _, e := range m.events {
		if e.Severity == severity {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockSecurityEventRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SecurityEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *MockSecurityEventRepository) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

func (m *MockSecurityEventRepository) Events() []*models.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SecurityEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockSecurityEventRepository) CountByType(eventType string) int {
	count := 0
	for _, e := range m.Events() {
		if e.EventType == eventType {
			count++
		}
	}
	return count
}

// RecordingAudit captures security events for assertions
type RecordingAudit struct {
	mu     sync.Mutex
	events []RecordedEvent
}

type RecordedEvent struct {
	EventType string
	Severity  string
	IPAddress string
	UserID    *uuid.UUID
	Detail    models.EventDetail
}

func (a *RecordingAudit) Record(ctx context.Context, eventType, severity, ipAddress string, userID *uuid.UUID, detail models.EventDetail) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, RecordedEvent{
		EventType: eventType,
		Severity:  severity,
		IPAddress: ipAddress,
		UserID:    userID,
		Detail:    detail,
	})
}

func (a *RecordingAudit) Events() []RecordedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RecordedEvent, len(a.events))
	copy(out, a.events)
	return out
}

func (a *RecordingAudit) CountByType(eventType string) int {
	count := 0
	for _, e := range a.Events() {
		if e.EventType == eventType {
			count++
		}
	}
	return count
}
