package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"alert-publisher/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS published_alert (
    alert_id                  TEXT PRIMARY KEY,
    severity                  TEXT NOT NULL,
    alert_type                TEXT NOT NULL,
    message                   TEXT NOT NULL DEFAULT '',
    details                   TEXT NOT NULL DEFAULT '',
    detected_at               TIMESTAMPTZ NOT NULL,
    published_at              TIMESTAMPTZ NOT NULL,
    cell_broadcast_status     TEXT NOT NULL,
    fcm_status                TEXT NOT NULL,
    cell_broadcast_message_id TEXT NOT NULL DEFAULT '',
    fcm_message_id            TEXT NOT NULL DEFAULT '',
    recipient_count           INTEGER NOT NULL DEFAULT 0,
    success_count             INTEGER NOT NULL DEFAULT 0,
    failure_count             INTEGER NOT NULL DEFAULT 0,
    error_message             TEXT NOT NULL DEFAULT '',
    retry_count               INTEGER NOT NULL DEFAULT 0,
    last_retry_at             TIMESTAMPTZ
)`

const selectColumns = `
    alert_id, severity, alert_type, message, details, detected_at, published_at,
    cell_broadcast_status, fcm_status, cell_broadcast_message_id, fcm_message_id,
    recipient_count, success_count, failure_count, error_message,
    retry_count, last_retry_at`

// PostgresStore persists tracking records in a published_alert table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pgx pool and ensures the published_alert table exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateIfAbsent inserts the record, relying on the primary key for the
// atomic insert-if-absent guarantee. Returns false when the ID already exists.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, r models.PublishedAlert) (bool, error) {
	query := `
        INSERT INTO published_alert (` + selectColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        ON CONFLICT (alert_id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query,
		r.AlertID, r.Severity, r.AlertType, r.Message, r.Details,
		r.DetectedAt, r.PublishedAt,
		r.CellBroadcastStatus, r.FcmStatus,
		r.CellBroadcastMessageID, r.FcmMessageID,
		r.RecipientCount, r.SuccessCount, r.FailureCount, r.ErrorMessage,
		r.RetryCount, r.LastRetryAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert published alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the record for alertID or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, alertID string) (models.PublishedAlert, error) {
	query := `SELECT ` + selectColumns + ` FROM published_alert WHERE alert_id = $1`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, alertID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PublishedAlert{}, ErrNotFound
		}
		return models.PublishedAlert{}, fmt.Errorf("failed to get published alert %s: %w", alertID, err)
	}
	return r, nil
}

// Update overwrites the mutable fields of the record.
func (s *PostgresStore) Update(ctx context.Context, r models.PublishedAlert) error {
	query := `
        UPDATE published_alert SET
            cell_broadcast_status = $2, fcm_status = $3,
            cell_broadcast_message_id = $4, fcm_message_id = $5,
            recipient_count = $6, success_count = $7, failure_count = $8,
            error_message = $9, retry_count = $10, last_retry_at = $11
        WHERE alert_id = $1`
	tag, err := s.pool.Exec(ctx, query,
		r.AlertID,
		r.CellBroadcastStatus, r.FcmStatus,
		r.CellBroadcastMessageID, r.FcmMessageID,
		r.RecipientCount, r.SuccessCount, r.FailureCount,
		r.ErrorMessage, r.RetryCount, r.LastRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update published alert %s: %w", r.AlertID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every record, newest first.
func (s *PostgresStore) ListAll(ctx context.Context) ([]models.PublishedAlert, error) {
	query := `SELECT ` + selectColumns + ` FROM published_alert ORDER BY published_at DESC`
	return s.queryRecords(ctx, query)
}

// ListBySeverity returns records matching the severity.
func (s *PostgresStore) ListBySeverity(ctx context.Context, severity string) ([]models.PublishedAlert, error) {
	query := `SELECT ` + selectColumns + ` FROM published_alert WHERE severity = $1 ORDER BY published_at DESC`
	return s.queryRecords(ctx, query, severity)
}

// ListByType returns records matching the alert type.
func (s *PostgresStore) ListByType(ctx context.Context, alertType string) ([]models.PublishedAlert, error) {
	query := `SELECT ` + selectColumns + ` FROM published_alert WHERE alert_type = $1 ORDER BY published_at DESC`
	return s.queryRecords(ctx, query, alertType)
}

// ListByPublishedBetween returns records published inside [start, end].
func (s *PostgresStore) ListByPublishedBetween(ctx context.Context, start, end time.Time) ([]models.PublishedAlert, error) {
	query := `SELECT ` + selectColumns + ` FROM published_alert
        WHERE published_at BETWEEN $1 AND $2 ORDER BY published_at DESC`
	return s.queryRecords(ctx, query, start, end)
}

// ListFailed returns records with at least one FAILED channel.
func (s *PostgresStore) ListFailed(ctx context.Context) ([]models.PublishedAlert, error) {
	query := `SELECT ` + selectColumns + ` FROM published_alert
        WHERE cell_broadcast_status = 'FAILED' OR fcm_status = 'FAILED'
        ORDER BY published_at DESC`
	return s.queryRecords(ctx, query)
}

// ListForRetry returns failed records still under the retry ceiling.
func (s *PostgresStore) ListForRetry(ctx context.Context, maxRetries int) ([]models.PublishedAlert, error) {
	query := `SELECT ` + selectColumns + ` FROM published_alert
        WHERE (cell_broadcast_status = 'FAILED' OR fcm_status = 'FAILED')
          AND retry_count < $1
        ORDER BY published_at DESC`
	return s.queryRecords(ctx, query, maxRetries)
}

// Stats counts records published after since, per channel outcome.
func (s *PostgresStore) Stats(ctx context.Context, since time.Time) (models.PublishStats, error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE cell_broadcast_status = 'SUCCESS'),
               COUNT(*) FILTER (WHERE fcm_status = 'SUCCESS')
        FROM published_alert WHERE published_at > $1`
	var stats models.PublishStats
	err := s.pool.QueryRow(ctx, query, since).Scan(
		&stats.TotalPublished, &stats.CellBroadcastSuccess, &stats.FcmSuccess)
	if err != nil {
		return models.PublishStats{}, fmt.Errorf("failed to get publish stats: %w", err)
	}
	return stats, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]models.PublishedAlert, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query published alerts: %w", err)
	}
	defer rows.Close()

	var records []models.PublishedAlert
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan published alert: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (models.PublishedAlert, error) {
	var r models.PublishedAlert
	err := row.Scan(
		&r.AlertID, &r.Severity, &r.AlertType, &r.Message, &r.Details,
		&r.DetectedAt, &r.PublishedAt,
		&r.CellBroadcastStatus, &r.FcmStatus,
		&r.CellBroadcastMessageID, &r.FcmMessageID,
		&r.RecipientCount, &r.SuccessCount, &r.FailureCount, &r.ErrorMessage,
		&r.RetryCount, &r.LastRetryAt,
	)
	return r, err
}
