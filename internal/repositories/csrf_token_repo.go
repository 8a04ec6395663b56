package repositories

import (
	"context"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CsrfTokenRepository persists single-use CSRF tokens
type CsrfTokenRepository struct {
	pool *pgxpool.Pool
}

func NewCsrfTokenRepository(db *database.DB) *CsrfTokenRepository {
	return &CsrfTokenRepository{pool: db.Pool}
}

func (r *CsrfTokenRepository) Create(ctx context.Context, token *models.CsrfToken) error {
	query := `
		INSERT INTO csrf_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, now())
	`

	_, err := r.pool.Exec(ctx, query, token.Token, token.UserID, token.ExpiresAt)
	return database.MapPostgresError(err)
}

// Consume atomically deletes the token if it is unexpired and bound to the
// presented principal. The delete-and-count shape is what makes the token
// single-use: a double-submit race leaves one winner and one loser. An
// unbound token verifies only for anonymous callers, a bound token only for
// its owner; a token minted before login is not honored after it.
func (r *CsrfTokenRepository) Consume(ctx context.Context, token string, userID *string) (bool, error) {
	query := `
		DELETE FROM csrf_tokens
		WHERE token = $1
		  AND expires_at > now()
		  AND ((user_id IS NULL AND $2::uuid IS NULL) OR user_id = $2)
	`

	tag, err := r.pool.Exec(ctx, query, token, userID)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpired prunes tokens past their TTL; called opportunistically from
// the manager, not from a scheduler.
func (r *CsrfTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM csrf_tokens WHERE expires_at <= now()`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
