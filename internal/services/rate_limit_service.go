package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
)

// RateLimitRepository defines the interface for window counter persistence.
// Increment must be a single atomic upsert, same constraint as the ledger.
type RateLimitRepository interface {
	Increment(ctx context.Context, ip, endpoint string, window time.Duration) (*models.RateLimitWindow, error)
	DeleteExpired(ctx context.Context, window time.Duration) (int64, error)
}

// RateLimitConfig holds the fixed-window policy
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

// RateLimiter bounds request counts per (IP, endpoint) within a fixed
// window, independent of authentication outcome.
type RateLimiter struct {
	repo   RateLimitRepository
	audit  *AuditService
	config RateLimitConfig
	logger *slog.Logger
}

func NewRateLimiter(repo RateLimitRepository, audit *AuditService, config RateLimitConfig, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		repo:   repo,
		audit:  audit,
		config: config,
		logger: logger,
	}
}

// Allow counts the request and reports whether it fits the window budget.
// Exactly MaxRequests requests per window pass; the next one is rejected
// and a HIGH severity event is emitted. An unreachable store fails closed.
func (rl *RateLimiter) Allow(ctx context.Context, ip, endpoint string) (bool, error) {
	var window *models.RateLimitWindow

	err := database.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		window, err = rl.repo.Increment(ctx, ip, endpoint, rl.config.Window)
		return err
	})
	if err != nil {
		rl.logger.Error("rate limit check failed",
			slog.String("endpoint", endpoint),
			slog.Any("error", err))
		return false, models.ErrStoreUnavailable
	}

	if window.RequestCount > rl.config.MaxRequests {
		// Log only the first rejection per window to keep the audit stream bounded
		if window.RequestCount == rl.config.MaxRequests+1 {
			rl.audit.Record(ctx, models.EventTypeRateLimitExceeded, models.SeverityHigh, ip, nil, models.EventDetail{
				"endpoint":     endpoint,
				"max_requests": rl.config.MaxRequests,
				"window":       rl.config.Window.String(),
			})
		}
		return false, nil
	}

	return true, nil
}

// Prune lazily drops windows that ended long ago
func (rl *RateLimiter) Prune(ctx context.Context) (int64, error) {
	return rl.repo.DeleteExpired(ctx, rl.config.Window)
}
