package store

import (
	"context"
	"errors"
	"time"

	"alert-publisher/internal/models"
)

// ErrNotFound indicates no tracking record exists for the alert ID.
var ErrNotFound = errors.New("published alert not found")

// Store persists one PublishedAlert tracking record per alert ID.
// CreateIfAbsent is the idempotency point: it must be atomic so that
// concurrent duplicate publishes resolve to exactly one created record.
type Store interface {
	CreateIfAbsent(ctx context.Context, record models.PublishedAlert) (bool, error)
	Get(ctx context.Context, alertID string) (models.PublishedAlert, error)
	Update(ctx context.Context, record models.PublishedAlert) error

	ListAll(ctx context.Context) ([]models.PublishedAlert, error)
	ListBySeverity(ctx context.Context, severity string) ([]models.PublishedAlert, error)
	ListByType(ctx context.Context, alertType string) ([]models.PublishedAlert, error)
	ListByPublishedBetween(ctx context.Context, start, end time.Time) ([]models.PublishedAlert, error)
	ListFailed(ctx context.Context) ([]models.PublishedAlert, error)
	ListForRetry(ctx context.Context, maxRetries int) ([]models.PublishedAlert, error)

	Stats(ctx context.Context, since time.Time) (models.PublishStats, error)
	Close()
}
