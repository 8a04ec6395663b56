package repositories

import (
	"context"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RememberTokenRepository persists remember-me token hashes, one row per user
type RememberTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRememberTokenRepository(db *database.DB) *RememberTokenRepository {
	return &RememberTokenRepository{pool: db.Pool}
}

// Upsert stores the token hash for a user, replacing any prior lineage.
// Only one remember-token lineage is valid per principal at a time.
func (r *RememberTokenRepository) Upsert(ctx context.Context, token *models.RememberToken) error {
	query := `
		INSERT INTO remember_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    expires_at = EXCLUDED.expires_at,
		    created_at = now()
	`

	_, err := r.pool.Exec(ctx, query, token.UserID, token.TokenHash, token.ExpiresAt)
	return database.MapPostgresError(err)
}

// GetByHash returns the unexpired token row matching the hash, or ErrNotFound.
// Expiry is checked in the query; resolution never extends expires_at.
func (r *RememberTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.RememberToken, error) {
	query := `
		SELECT user_id, token_hash, expires_at, created_at
		FROM remember_tokens
		WHERE token_hash = $1 AND expires_at > now()
	`

	var token models.RememberToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &token, nil
}

// DeleteByUserID revokes all remember tokens for a principal (logout)
func (r *RememberTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM remember_tokens WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

// DeleteExpired prunes tokens past their deadline
func (r *RememberTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM remember_tokens WHERE expires_at <= now()`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
