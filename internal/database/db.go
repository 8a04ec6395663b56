package database

import (
	"context"
	"errors"

	"github.com/ewhitfield/storefront/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates constraint violations into domain sentinels.
// Transient driver errors pass through untouched so WithRetry can still
// recognize them; whatever survives the retry degrades to
// ErrStoreUnavailable there, not here.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	return err
}

// IsTransient reports whether err is worth retrying once at the component
// boundary: lock contention, serialization failures, or a lost connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001": // serialization_failure
			return true
		case "40P01": // deadlock_detected
			return true
		case "55P03": // lock_not_available
			return true
		case "57P03": // cannot_connect_now
			return true
		}
	}

	return pgconn.SafeToRetry(err)
}

// WithRetry runs fn and retries exactly once on a transient store error.
// A transient failure that survives the retry degrades to
// ErrStoreUnavailable so that callers fail closed instead of seeing driver
// internals; non-transient errors come back as mapped.
func WithRetry(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || !IsTransient(err) {
		return err
	}

	if ctx.Err() != nil {
		return models.ErrStoreUnavailable
	}

	err = fn(ctx)
	if err != nil && IsTransient(err) {
		return models.ErrStoreUnavailable
	}
	return err
}

func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
