package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository persists per-subject-key failure counters. Every
// mutation is a single conditional statement; concurrent failures for the
// same key serialize on the row and can never under-count.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// IncrementFailure records one failed login for the subject key and returns
// the resulting record. A key whose lockout deadline has already passed is
// treated as fresh: its counter restarts at 1, not N+1.
func (r *LoginAttemptRepository) IncrementFailure(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error) {
	query := `
		INSERT INTO login_attempts (ip_address, identifier, attempts, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (ip_address, identifier) DO UPDATE
		SET attempts = CASE
		        WHEN login_attempts.locked_until IS NOT NULL AND login_attempts.locked_until <= now()
		        THEN 1
		        ELSE login_attempts.attempts + 1
		    END,
		    locked_until = CASE
		        WHEN login_attempts.locked_until IS NOT NULL AND login_attempts.locked_until <= now()
		        THEN NULL
		        ELSE login_attempts.locked_until
		    END,
		    updated_at = now()
		RETURNING attempts, locked_until, updated_at
	`

	record := &models.LoginAttemptRecord{SubjectKey: key}
	err := r.pool.QueryRow(ctx, query, key.IPAddress, key.Identifier).Scan(
		&record.Attempts, &record.LockedUntil, &record.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return record, nil
}

// Lock sets the lockout deadline, but only if the counter actually reached
// the threshold and no lock is already in force. Idempotent under races:
// two attempts crossing the threshold together set the same deadline once.
func (r *LoginAttemptRepository) Lock(ctx context.Context, key models.SubjectKey, threshold int, duration time.Duration) (*time.Time, error) {
	query := `
		UPDATE login_attempts
		SET locked_until = now() + $4, updated_at = now()
		WHERE ip_address = $1 AND identifier = $2
		  AND attempts >= $3
		  AND (locked_until IS NULL OR locked_until <= now())
		RETURNING locked_until
	`

	var until time.Time
	err := r.pool.QueryRow(ctx, query, key.IPAddress, key.Identifier, threshold, duration).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &until, nil
}

// Get returns the record for a subject key, or ErrNotFound
func (r *LoginAttemptRepository) Get(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error) {
	query := `
		SELECT attempts, locked_until, updated_at
		FROM login_attempts
		WHERE ip_address = $1 AND identifier = $2
	`

	record := &models.LoginAttemptRecord{SubjectKey: key}
	err := r.pool.QueryRow(ctx, query, key.IPAddress, key.Identifier).Scan(
		&record.Attempts, &record.LockedUntil, &record.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return record, nil
}

// Clear deletes the record for a subject key after a successful login
func (r *LoginAttemptRepository) Clear(ctx context.Context, key models.SubjectKey) error {
	query := `DELETE FROM login_attempts WHERE ip_address = $1 AND identifier = $2`

	_, err := r.pool.Exec(ctx, query, key.IPAddress, key.Identifier)
	return database.MapPostgresError(err)
}

// DeleteStale prunes records untouched for longer than the retention window
func (r *LoginAttemptRepository) DeleteStale(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM login_attempts WHERE updated_at < now() - $1 AND (locked_until IS NULL OR locked_until <= now())`

	tag, err := r.pool.Exec(ctx, query, retention)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
