package repositories

import (
	"context"
	"fmt"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityEventRepository handles the append-only audit stream
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{pool: db.Pool}
}

const securityEventColumns = `id, event_type, severity, ip_address, user_id, detail, created_at`

func scanSecurityEventRow(row rowScanner) (*models.SecurityEvent, error) {
	var event models.SecurityEvent

	err := row.Scan(
		&event.ID, &event.EventType, &event.Severity,
		&event.IPAddress, &event.UserID, &event.Detail, &event.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &event, nil
}

func scanSecurityEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)

	for rows.Next() {
		event, err := scanSecurityEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

// Create appends one event. Nothing updates or deletes individual rows.
func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	query := `
		INSERT INTO security_events (id, event_type, severity, ip_address, user_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + securityEventColumns

	result, err := scanSecurityEventRow(r.pool.QueryRow(
		ctx, query,
		uuid.New(), event.EventType, event.Severity, event.IPAddress, event.UserID, event.Detail,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create security event: %w", err)
	}

	return result, nil
}

// ListBySeverity retrieves recent events of a given severity
func (r *SecurityEventRepository) ListBySeverity(ctx context.Context, severity string, limit, offset int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT ` + securityEventColumns + `
		FROM security_events
		WHERE severity = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, severity, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanSecurityEventRows(rows)
}

// ListRecent retrieves the newest events regardless of severity
func (r *SecurityEventRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT ` + securityEventColumns + `
		FROM security_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanSecurityEventRows(rows)
}

// Cleanup purges events older than the retention window
func (r *SecurityEventRepository) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	query := `
		DELETE FROM security_events
		WHERE created_at < CURRENT_TIMESTAMP - INTERVAL '1 day' * $1
	`

	result, err := r.pool.Exec(ctx, query, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup security events: %w", err)
	}

	return result.RowsAffected(), nil
}
