package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
	pkglogger "github.com/ewhitfield/storefront/pkg/logger"
)

// CsrfTokenRepository defines the interface for CSRF token persistence.
// Consume must delete-and-count atomically so a double-submit race can
// never pass verification twice.
type CsrfTokenRepository interface {
	Create(ctx context.Context, token *models.CsrfToken) error
	Consume(ctx context.Context, token string, userID *string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// CsrfManager issues and verifies single-use CSRF tokens
type CsrfManager struct {
	repo     CsrfTokenRepository
	audit    *AuditService
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewCsrfManager(repo CsrfTokenRepository, audit *AuditService, tokenTTL time.Duration, logger *slog.Logger) *CsrfManager {
	return &CsrfManager{
		repo:     repo,
		audit:    audit,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// Issue mints a token, optionally bound to a principal. 32 random bytes
// (256 bits) hex encoded.
func (m *CsrfManager) Issue(ctx context.Context, userID *string) (string, error) {
	// Opportunistic pruning, failures are non-fatal
	if _, err := m.repo.DeleteExpired(ctx); err != nil {
		m.logger.Warn("failed to prune expired csrf tokens", slog.Any("error", err))
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	token := hex.EncodeToString(randomBytes)

	err := database.WithRetry(ctx, func(ctx context.Context) error {
		return m.repo.Create(ctx, &models.CsrfToken{
			Token:     token,
			UserID:    userID,
			ExpiresAt: time.Now().Add(m.tokenTTL),
		})
	})
	if err != nil {
		m.logger.Error("failed to store csrf token", slog.Any("error", err))
		return "", models.ErrStoreUnavailable
	}

	return token, nil
}

// Verify consumes the token. Expired, unknown, reused, or wrong-principal
// tokens all fail the same way; the audit entry keeps the precise context
// with the submitted value truncated. Store failure fails closed.
func (m *CsrfManager) Verify(ctx context.Context, token string, userID *string, clientIP string) error {
	if token == "" {
		m.recordInvalid(ctx, token, clientIP, "missing")
		return models.ErrCsrfInvalid
	}

	// Opportunistic pruning, failures are non-fatal
	if _, err := m.repo.DeleteExpired(ctx); err != nil {
		m.logger.Warn("failed to prune expired csrf tokens", slog.Any("error", err))
	}

	var ok bool
	err := database.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		ok, err = m.repo.Consume(ctx, token, userID)
		return err
	})
	if err != nil {
		m.logger.Error("csrf verification failed against store", slog.Any("error", err))
		return models.ErrStoreUnavailable
	}

	if !ok {
		m.recordInvalid(ctx, token, clientIP, "unknown_expired_or_reused")
		return models.ErrCsrfInvalid
	}

	return nil
}

func (m *CsrfManager) recordInvalid(ctx context.Context, token, clientIP, reason string) {
	m.audit.Record(ctx, models.EventTypeCsrfTokenInvalid, models.SeverityHigh, clientIP, nil, models.EventDetail{
		"reason": reason,
		"token":  pkglogger.TruncatedToken(token),
	})
}

// Prune removes expired tokens; also reachable from the background sweeper
func (m *CsrfManager) Prune(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx)
}
