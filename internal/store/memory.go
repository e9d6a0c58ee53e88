package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"alert-publisher/internal/models"
)

// MemoryStore keeps tracking records in process memory. It backs the service
// when no DB_DSN is configured and is the store used by the test suite.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.PublishedAlert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.PublishedAlert)}
}

// CreateIfAbsent inserts the record unless its alert ID is already present.
// The check-and-insert happens under one lock, so concurrent duplicates
// resolve to exactly one winner.
func (s *MemoryStore) CreateIfAbsent(_ context.Context, record models.PublishedAlert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.AlertID]; exists {
		return false, nil
	}
	s.records[record.AlertID] = record
	return true, nil
}

// Get returns the record for alertID or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, alertID string) (models.PublishedAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[alertID]
	if !ok {
		return models.PublishedAlert{}, ErrNotFound
	}
	return record, nil
}

// Update overwrites the stored record for its alert ID.
func (s *MemoryStore) Update(_ context.Context, record models.PublishedAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.AlertID]; !ok {
		return ErrNotFound
	}
	s.records[record.AlertID] = record
	return nil
}

func (s *MemoryStore) list(match func(models.PublishedAlert) bool) []models.PublishedAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PublishedAlert, 0)
	for _, record := range s.records {
		if match(record) {
			out = append(out, record)
		}
	}
	// Newest first, matching the Postgres ordering.
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

// ListAll returns every record, newest first.
func (s *MemoryStore) ListAll(_ context.Context) ([]models.PublishedAlert, error) {
	return s.list(func(models.PublishedAlert) bool { return true }), nil
}

// ListBySeverity returns records matching the severity.
func (s *MemoryStore) ListBySeverity(_ context.Context, severity string) ([]models.PublishedAlert, error) {
	return s.list(func(r models.PublishedAlert) bool { return r.Severity == severity }), nil
}

// ListByType returns records matching the alert type.
func (s *MemoryStore) ListByType(_ context.Context, alertType string) ([]models.PublishedAlert, error) {
	return s.list(func(r models.PublishedAlert) bool { return r.AlertType == alertType }), nil
}

// ListByPublishedBetween returns records published inside [start, end].
func (s *MemoryStore) ListByPublishedBetween(_ context.Context, start, end time.Time) ([]models.PublishedAlert, error) {
	return s.list(func(r models.PublishedAlert) bool {
		return !r.PublishedAt.Before(start) && !r.PublishedAt.After(end)
	}), nil
}

// ListFailed returns records with at least one FAILED channel.
func (s *MemoryStore) ListFailed(_ context.Context) ([]models.PublishedAlert, error) {
	return s.list(func(r models.PublishedAlert) bool { return r.HasFailedChannel() }), nil
}

// ListForRetry returns failed records still under the retry ceiling.
func (s *MemoryStore) ListForRetry(_ context.Context, maxRetries int) ([]models.PublishedAlert, error) {
	return s.list(func(r models.PublishedAlert) bool {
		return r.HasFailedChannel() && r.RetryCount < maxRetries
	}), nil
}

// Stats counts records published after since, per channel outcome.
func (s *MemoryStore) Stats(_ context.Context, since time.Time) (models.PublishStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats models.PublishStats
	for _, r := range s.records {
		if !r.PublishedAt.After(since) {
			continue
		}
		stats.TotalPublished++
		if r.CellBroadcastStatus == models.StatusSuccess {
			stats.CellBroadcastSuccess++
		}
		if r.FcmStatus == models.StatusSuccess {
			stats.FcmSuccess++
		}
	}
	return stats, nil
}

// Close releases nothing for the in-memory store.
func (s *MemoryStore) Close() {}
