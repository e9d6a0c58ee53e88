package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"alert-publisher/internal/channels"
	"alert-publisher/internal/config"
	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
	"alert-publisher/internal/store"
)

// ErrInvalidAlert rejects inbound alerts with no identity.
var ErrInvalidAlert = errors.New("invalid alert: missing id")

// ResultSink receives one event per channel completion.
type ResultSink interface {
	PublishResult(ctx context.Context, event models.ResultEvent)
}

// Service is the dispatch orchestrator: it accepts each alert exactly once,
// fans out to all channels concurrently, merges per-channel results into the
// tracking record under a per-record lock, and re-drives failed channels on
// retry sweeps.
type Service struct {
	store      store.Store
	channels   []channels.Channel
	logger     *logging.Logger
	config     config.Config
	sinks      []ResultSink
	tasks      chan models.AlertMessage
	ctx        context.Context
	cancel     context.CancelFunc
	wg         *sync.WaitGroup
	deliveries sync.WaitGroup

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New constructs a publisher Service.
func New(st store.Store, chs []channels.Channel, logger *logging.Logger, cfg config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:    st,
		channels: chs,
		logger:   logger,
		config:   cfg,
		tasks:    make(chan models.AlertMessage, cfg.Publisher.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		locks:    make(map[string]*sync.Mutex),
	}
}

// AddResultSink registers a sink for channel-completion events.
func (s *Service) AddResultSink(sink ResultSink) {
	s.sinks = append(s.sinks, sink)
}

// Logger exposes the Service's logger to the Kafka consumer.
func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.Publisher.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Enqueue hands an inbound alert to the worker pool so the consumer loop
// never blocks on dispatch.
func (s *Service) Enqueue(alert models.AlertMessage) {
	select {
	case s.tasks <- alert:
		s.logger.Infof("Queued alert: %s", alert.ID)
	default:
		s.logger.Errorf("Queue full, dropping alert: %s", alert.ID)
	}
}

// worker processes queued alerts until the service is stopped.
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case alert := <-s.tasks:
			if err := s.Publish(alert); err != nil {
				s.logger.Errorf("Error publishing alert %s: %v", alert.ID, err)
			}
		}
	}
}

// Publish dispatches one alert through every configured channel. The call
// returns as soon as the tracking record is persisted and the channel
// goroutines are launched; completions are merged asynchronously.
//
// Publishing is idempotent per alert ID: the store's atomic insert-if-absent
// guarantees at most one dispatch sequence even under concurrent duplicates.
func (s *Service) Publish(alert models.AlertMessage) error {
	if strings.TrimSpace(alert.ID) == "" {
		return ErrInvalidAlert
	}

	s.logger.Infof("Publishing alert: %s - Severity: %s", alert.ID, alert.Severity)

	detectedAt := alert.Timestamp
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}
	record := models.PublishedAlert{
		AlertID:             alert.ID,
		Severity:            alert.Severity,
		AlertType:           alert.AlertType,
		Message:             RenderMessage(alert),
		Details:             alert.RawData,
		DetectedAt:          detectedAt,
		PublishedAt:         time.Now(),
		CellBroadcastStatus: models.StatusInProgress,
		FcmStatus:           models.StatusInProgress,
	}

	created, err := s.store.CreateIfAbsent(s.ctx, record)
	if err != nil {
		return fmt.Errorf("failed to create tracking record for %s: %w", alert.ID, err)
	}
	if !created {
		s.logger.Warnf("Alert already published: %s", alert.ID)
		return nil
	}

	for _, ch := range s.channels {
		s.launchDelivery(ch, alert)
	}

	s.logger.Infof("Alert publishing initiated: %s", alert.ID)
	return nil
}

// launchDelivery runs one channel delivery and routes its result into the
// aggregator. Launched deliveries always run to completion.
func (s *Service) launchDelivery(ch channels.Channel, alert models.AlertMessage) {
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		result := ch.Deliver(s.ctx, alert)
		s.mergeResult(alert.ID, ch.Name(), result)
	}()
}

// mergeResult folds one channel result into the tracking record. Both
// channels complete independently and may race, so the load-mutate-store
// sequence holds the record's lock throughout. Aggregate counters only grow.
func (s *Service) mergeResult(alertID, channel string, result channels.Result) {
	lock := s.recordLock(alertID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.store.Get(s.ctx, alertID)
	if err != nil {
		s.logger.Errorf("Failed to load record for %s result on %s: %v", channel, alertID, err)
		return
	}

	switch {
	case result.Skipped:
		record.SetChannelStatus(channel, models.StatusSkipped)
	case result.Success:
		record.SetChannelStatus(channel, models.StatusSuccess)
	default:
		record.SetChannelStatus(channel, models.StatusFailed)
	}
	if result.MessageID != "" {
		record.SetChannelMessageID(channel, result.MessageID)
	}
	record.RecipientCount += result.RecipientCount

	if result.Success {
		record.SuccessCount += result.SuccessCount
	} else {
		failures := result.FailureCount
		if failures < 1 {
			failures = 1
		}
		record.FailureCount += failures
		if result.Message != "" {
			if record.ErrorMessage != "" {
				record.ErrorMessage = record.ErrorMessage + "; " + result.Message
			} else {
				record.ErrorMessage = result.Message
			}
		}
	}

	// A failed status write must not lose the completion event; the failure
	// is logged for the operator and the dispatch sequence continues.
	if err := s.store.Update(s.ctx, record); err != nil {
		s.logger.Errorf("Failed to persist %s result for %s: %v", channel, alertID, err)
	}

	s.emitResult(record, channel, result.Success)
}

// emitResult publishes one channel-completion event to every sink.
func (s *Service) emitResult(record models.PublishedAlert, channel string, success bool) {
	event := models.ResultEvent{
		AlertID:    record.AlertID,
		Severity:   record.Severity,
		AlertType:  record.AlertType,
		Message:    record.Message,
		DetectedAt: record.DetectedAt,
		Channel:    channel,
		Success:    success,
	}
	for _, sink := range s.sinks {
		sink.PublishResult(s.ctx, event)
	}
}

// RetryFailed re-drives every record that has at least one FAILED channel and
// is still under the retry ceiling. Records at or beyond maxRetries stay
// FAILED and are never touched again.
func (s *Service) RetryFailed(maxRetries int) error {
	records, err := s.store.ListForRetry(s.ctx, maxRetries)
	if err != nil {
		return fmt.Errorf("failed to list alerts for retry: %w", err)
	}

	s.logger.Infof("Retrying %d failed alerts", len(records))

	for _, record := range records {
		s.retryRecord(record.AlertID)
	}
	return nil
}

// retryRecord re-launches only the channels currently FAILED on the record.
// Bookkeeping happens once per record under its lock, which also covers the
// race with a concurrently completing channel result.
func (s *Service) retryRecord(alertID string) {
	lock := s.recordLock(alertID)
	lock.Lock()

	record, err := s.store.Get(s.ctx, alertID)
	if err != nil {
		lock.Unlock()
		s.logger.Errorf("Failed to load record %s for retry: %v", alertID, err)
		return
	}

	var toRetry []channels.Channel
	for _, ch := range s.channels {
		if record.ChannelStatus(ch.Name()) == models.StatusFailed {
			record.SetChannelStatus(ch.Name(), models.StatusInProgress)
			toRetry = append(toRetry, ch)
		}
	}
	if len(toRetry) == 0 {
		// Raced with a completion that already resolved the failure.
		lock.Unlock()
		return
	}

	now := time.Now()
	record.RetryCount++
	record.LastRetryAt = &now
	if err := s.store.Update(s.ctx, record); err != nil {
		s.logger.Errorf("Failed to persist retry bookkeeping for %s: %v", alertID, err)
	}
	lock.Unlock()

	alert := alertFromRecord(record)
	for _, ch := range toRetry {
		s.logger.Infof("Retrying alert %s via %s (attempt %d)", alertID, ch.Name(), record.RetryCount)
		s.launchDelivery(ch, alert)
	}
}

// alertFromRecord rebuilds the delivery payload from the persisted record.
// Hazard-specific numeric fields are not retained on the record, so retried
// deliveries estimate reach from severity alone.
func alertFromRecord(record models.PublishedAlert) models.AlertMessage {
	return models.AlertMessage{
		ID:          record.AlertID,
		AlertType:   record.AlertType,
		Severity:    record.Severity,
		Description: record.Message,
		RawData:     record.Details,
		Timestamp:   record.DetectedAt,
	}
}

// recordLock returns the mutex guarding one tracking record. Locks live for
// the process lifetime; records are never deleted by the core.
func (s *Service) recordLock(alertID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[alertID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[alertID] = lock
	}
	return lock
}

// Drain blocks until all launched channel deliveries have completed.
func (s *Service) Drain() {
	s.deliveries.Wait()
}

// Stop cancels the worker pool context.
func (s *Service) Stop() {
	s.cancel()
}
