package services

import (
	"context"
	"log/slog"

	"github.com/ewhitfield/storefront/internal/models"
	"github.com/google/uuid"
)

// SecurityEventRepository defines the interface for audit log persistence
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	ListBySeverity(ctx context.Context, severity string, limit, offset int) ([]*models.SecurityEvent, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error)
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

// AuditService appends to the security event stream with dual-write (slog +
// database). Recording never fails from the caller's perspective: audit
// availability must not become an availability hazard for the login path.
type AuditService struct {
	repo   SecurityEventRepository
	logger *slog.Logger
}

func NewAuditService(repo SecurityEventRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

// Record appends one event. Persistence failures are logged locally and
// swallowed. CRITICAL events additionally go to the operational log at
// Error level.
func (s *AuditService) Record(ctx context.Context, eventType, severity, ipAddress string, userID *uuid.UUID, detail models.EventDetail) {
	event := &models.SecurityEvent{
		EventType: eventType,
		Severity:  severity,
		IPAddress: ipAddress,
		UserID:    userID,
		Detail:    detail,
	}

	attrs := []slog.Attr{
		slog.String("event_type", eventType),
		slog.String("severity", severity),
		slog.String("ip_address", ipAddress),
	}
	if userID != nil {
		attrs = append(attrs, slog.String("user_id", userID.String()))
	}
	if len(detail) > 0 {
		attrs = append(attrs, slog.Any("detail", detail))
	}

	level := slog.LevelInfo
	switch severity {
	case models.SeverityHigh:
		level = slog.LevelWarn
	case models.SeverityCritical:
		level = slog.LevelError
	}
	s.logger.LogAttrs(ctx, level, "security event", attrs...)

	if _, err := s.repo.Create(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", eventType),
			slog.Any("error", err),
		)
	}
}

// ListBySeverity returns recent events filtered by severity for the admin surface
func (s *AuditService) ListBySeverity(ctx context.Context, severity string, limit, offset int) ([]*models.SecurityEvent, error) {
	if !models.ValidSeverity(severity) {
		return nil, models.ErrBadRequest
	}
	return s.repo.ListBySeverity(ctx, severity, limit, offset)
}

// ListRecent returns the newest events for the admin surface
func (s *AuditService) ListRecent(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
	return s.repo.ListRecent(ctx, limit, offset)
}

// Cleanup purges events older than the retention window
func (s *AuditService) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	return s.repo.Cleanup(ctx, olderThanDays)
}
