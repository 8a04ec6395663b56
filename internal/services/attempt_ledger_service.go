package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
)

// LoginAttemptRepository defines the interface for attempt ledger persistence.
// IncrementFailure and Lock must be atomic single-statement operations: a
// read-then-write sequence here would let concurrent failures under-count.
type LoginAttemptRepository interface {
	IncrementFailure(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error)
	Lock(ctx context.Context, key models.SubjectKey, threshold int, duration time.Duration) (*time.Time, error)
	Get(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error)
	Clear(ctx context.Context, key models.SubjectKey) error
	DeleteStale(ctx context.Context, retention time.Duration) (int64, error)
}

// LedgerConfig holds the lockout policy. The duration is fixed at
// configuration time; there is no adaptive backoff.
type LedgerConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	Retention       time.Duration
}

// AttemptLedger tracks consecutive login failures per subject key and
// decides whether a login may be attempted at all.
type AttemptLedger struct {
	repo   LoginAttemptRepository
	config LedgerConfig
	logger *slog.Logger
}

func NewAttemptLedger(repo LoginAttemptRepository, config LedgerConfig, logger *slog.Logger) *AttemptLedger {
	return &AttemptLedger{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// RecordFailure registers one failed login and returns the new ledger state.
// When the counter reaches the configured threshold the lockout deadline is
// set in the same call. Transient store errors are retried once, then
// surface as ErrStoreUnavailable.
func (l *AttemptLedger) RecordFailure(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error) {
	var record *models.LoginAttemptRecord

	err := database.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		record, err = l.repo.IncrementFailure(ctx, key)
		return err
	})
	if err != nil {
		l.logger.Error("failed to record login failure", slog.Any("error", err))
		return nil, models.ErrStoreUnavailable
	}

	if record.Attempts >= l.config.MaxAttempts && record.LockedUntil == nil {
		until, err := l.repo.Lock(ctx, key, l.config.MaxAttempts, l.config.LockoutDuration)
		if err != nil {
			l.logger.Error("failed to set lockout", slog.Any("error", err))
			return nil, models.ErrStoreUnavailable
		}
		record.LockedUntil = until
	}

	return record, nil
}

// IsLocked reports whether the subject key is currently locked out, and if
// so, until when. Consults the store at decision time; no cached state.
func (l *AttemptLedger) IsLocked(ctx context.Context, key models.SubjectKey) (bool, *time.Time, error) {
	var record *models.LoginAttemptRecord

	err := database.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		record, err = l.repo.Get(ctx, key)
		return err
	})
	if errors.Is(err, models.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		// Fail closed: an unreachable ledger denies the login attempt
		l.logger.Error("failed to check lockout state", slog.Any("error", err))
		return false, nil, models.ErrStoreUnavailable
	}

	if record.Locked(time.Now()) {
		return true, record.LockedUntil, nil
	}
	return false, nil, nil
}

// Clear resets the ledger for a subject key after a successful login
func (l *AttemptLedger) Clear(ctx context.Context, key models.SubjectKey) error {
	err := database.WithRetry(ctx, func(ctx context.Context) error {
		return l.repo.Clear(ctx, key)
	})
	if err != nil {
		l.logger.Error("failed to clear login attempts", slog.Any("error", err))
		return models.ErrStoreUnavailable
	}
	return nil
}

// Prune removes records idle past the retention window
func (l *AttemptLedger) Prune(ctx context.Context) (int64, error) {
	return l.repo.DeleteStale(ctx, l.config.Retention)
}
