package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `id, email, username, password_hash, role, status, failed_attempts, locked_until, last_login_at, created_at, updated_at`

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockedUntil, lastLoginAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.Role, &user.Status, &user.FailedAttempts,
		&lockedUntil, &lastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LockedUntil = lockedUntil
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByIdentifier looks a principal up by username or email. Email matching
// is case-insensitive; usernames are exact.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = lower($2)
	`

	identifier = strings.TrimSpace(identifier)
	return scanUserRow(r.pool.QueryRow(ctx, query, identifier, identifier))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = "customer"
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, role, status, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	))
}

// RecordLoginFailure bumps the principal's own failure counter in a single
// conditional update and applies the row-level lock when the counter reaches
// the threshold. Returns the counter after the increment.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration) (int, error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN now() + $3 ELSE locked_until END,
		    updated_at = now()
		WHERE id = $1
		RETURNING failed_attempts
	`

	var attempts int
	err := r.pool.QueryRow(ctx, query, id, threshold, lockFor).Scan(&attempts)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

// RecordLoginSuccess zeroes the failure counter, lifts any row lock and
// stamps the last login time.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE users SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = lower($1) OR username = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", database.MapPostgresError(err))
	}
	return exists, nil
}
