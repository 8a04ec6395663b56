package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/ewhitfield/storefront/internal/services"
)

// CleanupManager periodically sweeps expired security state from the
// database: stale attempt records, dead rate-limit windows, expired CSRF
// and remember tokens, and aged-out audit events.
type CleanupManager struct {
	ledger             *services.AttemptLedger
	limiter            *services.RateLimiter
	csrf               *services.CsrfManager
	remember           *services.RememberTokenService
	audit              *services.AuditService
	logger             *slog.Logger
	interval           time.Duration
	auditRetentionDays int
	stopCh             chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	ledger *services.AttemptLedger,
	limiter *services.RateLimiter,
	csrf *services.CsrfManager,
	remember *services.RememberTokenService,
	audit *services.AuditService,
	logger *slog.Logger,
	interval time.Duration,
	auditRetentionDays int,
) *CleanupManager {
	return &CleanupManager{
		ledger:             ledger,
		limiter:            limiter,
		csrf:               csrf,
		remember:           remember,
		audit:              audit,
		logger:             logger,
		interval:           interval,
		auditRetentionDays: auditRetentionDays,
		stopCh:             make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup sweeps each store in turn. A failure in one sweep never
// blocks the others.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting security state cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sweeps := []struct {
		name string
		run  func(context.Context) (int64, error)
	}{
		{"login_attempts", cm.ledger.Prune},
		{"rate_limit_windows", cm.limiter.Prune},
		{"csrf_tokens", cm.csrf.Prune},
		{"remember_tokens", cm.remember.Prune},
		{"security_events", func(ctx context.Context) (int64, error) {
			return cm.audit.Cleanup(ctx, cm.auditRetentionDays)
		}},
	}

	for _, sweep := range sweeps {
		rowsDeleted, err := sweep.run(cleanupCtx)
		if err != nil {
			cm.logger.Error("cleanup sweep failed",
				slog.String("sweep", sweep.name),
				slog.Any("error", err))
			continue
		}
		if rowsDeleted > 0 {
			cm.logger.Info("cleanup sweep completed",
				slog.String("sweep", sweep.name),
				slog.Int64("rows_deleted", rowsDeleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
