package repositories

import (
	"context"
	"time"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitRepository persists fixed-window request counters. The increment
// and the window rollover happen in one statement so two concurrent requests
// cannot both observe a stale count.
type RateLimitRepository struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepository(db *database.DB) *RateLimitRepository {
	return &RateLimitRepository{pool: db.Pool}
}

// Increment counts one request for (ip, endpoint) and returns the window
// after the increment. A window older than the configured duration is
// replaced by a fresh one starting now with count 1.
func (r *RateLimitRepository) Increment(ctx context.Context, ip, endpoint string, window time.Duration) (*models.RateLimitWindow, error) {
	query := `
		INSERT INTO rate_limit_windows (ip_address, endpoint, request_count, window_start)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (ip_address, endpoint) DO UPDATE
		SET request_count = CASE
		        WHEN rate_limit_windows.window_start <= now() - $3
		        THEN 1
		        ELSE rate_limit_windows.request_count + 1
		    END,
		    window_start = CASE
		        WHEN rate_limit_windows.window_start <= now() - $3
		        THEN now()
		        ELSE rate_limit_windows.window_start
		    END
		RETURNING request_count, window_start
	`

	win := &models.RateLimitWindow{IPAddress: ip, Endpoint: endpoint}
	err := r.pool.QueryRow(ctx, query, ip, endpoint, window).Scan(&win.RequestCount, &win.WindowStart)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return win, nil
}

// DeleteExpired lazily prunes windows that ended more than one window ago
func (r *RateLimitRepository) DeleteExpired(ctx context.Context, window time.Duration) (int64, error) {
	query := `DELETE FROM rate_limit_windows WHERE window_start < now() - ($1 * 2)`

	tag, err := r.pool.Exec(ctx, query, window)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
