package publisher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"alert-publisher/internal/channels"
	"alert-publisher/internal/config"
	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
	"alert-publisher/internal/store"
)

// scriptedChannel returns canned results in call order; the last result
// repeats. An optional release gate delays delivery until it is closed.
type scriptedChannel struct {
	name    string
	results []channels.Result
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (c *scriptedChannel) Name() string { return c.name }

func (c *scriptedChannel) Deliver(_ context.Context, _ models.AlertMessage) channels.Result {
	if c.release != nil {
		<-c.release
	}
	c.mu.Lock()
	i := c.calls
	c.calls++
	c.mu.Unlock()
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	return c.results[i]
}

func (c *scriptedChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.ResultEvent
}

func (s *recordingSink) PublishResult(_ context.Context, event models.ResultEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []models.ResultEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ResultEvent(nil), s.events...)
}

func newTestService(chs ...channels.Channel) (*Service, *store.MemoryStore, *recordingSink) {
	var cfg config.Config
	cfg.Publisher.QueueSize = 16
	cfg.Publisher.MaxWorkers = 2
	cfg.Publisher.MaxRetries = 3

	st := store.NewMemoryStore()
	svc := New(st, chs, logging.NewDiscard(), cfg)
	sink := &recordingSink{}
	svc.AddResultSink(sink)
	return svc, st, sink
}

func successResult(messageID string, recipients int) channels.Result {
	return channels.Result{
		Success:        true,
		MessageID:      messageID,
		RecipientCount: recipients,
		SuccessCount:   recipients,
		Message:        "sent",
	}
}

func failureResult(message string) channels.Result {
	return channels.Result{
		Success:      false,
		FailureCount: 1,
		Message:      message,
	}
}

func quakeAlert(id string) models.AlertMessage {
	magnitude := 5.0
	return models.AlertMessage{
		ID:        id,
		AlertType: "EARTHQUAKE",
		Severity:  "HIGH",
		Magnitude: &magnitude,
		Location:  "California",
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestPublishRejectsMissingID(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(
		&scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-1", 10)}},
	)

	err := svc.Publish(models.AlertMessage{Severity: "HIGH", AlertType: "FLOOD"})
	if !errors.Is(err, ErrInvalidAlert) {
		t.Fatalf("expected ErrInvalidAlert, got %v", err)
	}

	svc.Drain()
	records, err := st.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records for invalid alert, got %d", len(records))
	}
}

func TestPublishIdempotentSequential(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-1", 100)}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{successResult("FCM-1", 50)}}
	svc, st, _ := newTestService(cb, fcm)

	alert := quakeAlert("eq-dup")
	if err := svc.Publish(alert); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := svc.Publish(alert); err != nil {
		t.Fatalf("duplicate publish should be a no-op, got %v", err)
	}
	svc.Drain()

	records, err := st.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	if cb.callCount() != 1 || fcm.callCount() != 1 {
		t.Fatalf("expected one dispatch per channel, got cb=%d fcm=%d", cb.callCount(), fcm.callCount())
	}
}

func TestPublishIdempotentConcurrent(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-1", 100)}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{successResult("FCM-1", 50)}}
	svc, st, _ := newTestService(cb, fcm)

	alert := quakeAlert("eq-race")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Publish(alert); err != nil {
				t.Errorf("publish: %v", err)
			}
		}()
	}
	wg.Wait()
	svc.Drain()

	records, err := st.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record under concurrent duplicates, got %d", len(records))
	}
	if cb.callCount() != 1 || fcm.callCount() != 1 {
		t.Fatalf("expected one dispatch per channel, got cb=%d fcm=%d", cb.callCount(), fcm.callCount())
	}
}

func TestPartialFailureAggregation(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-77", 1000000)}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{failureResult("FCM error: invalid registration token")}}
	svc, st, sink := newTestService(cb, fcm)

	if err := svc.Publish(quakeAlert("eq-partial")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	svc.Drain()

	record, err := st.Get(context.Background(), "eq-partial")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.CellBroadcastStatus != models.StatusSuccess {
		t.Fatalf("expected cell broadcast SUCCESS, got %s", record.CellBroadcastStatus)
	}
	if record.FcmStatus != models.StatusFailed {
		t.Fatalf("expected fcm FAILED, got %s", record.FcmStatus)
	}
	if record.CellBroadcastMessageID != "CB-77" {
		t.Fatalf("unexpected cell broadcast message id %q", record.CellBroadcastMessageID)
	}
	if record.RecipientCount < 1000000 {
		t.Fatalf("expected recipients >= 1000000, got %d", record.RecipientCount)
	}
	if record.SuccessCount != 1000000 {
		t.Fatalf("expected success count 1000000, got %d", record.SuccessCount)
	}
	if record.FailureCount < 1 {
		t.Fatalf("expected failure count >= 1, got %d", record.FailureCount)
	}
	if !strings.Contains(record.ErrorMessage, "invalid registration token") {
		t.Fatalf("expected error text, got %q", record.ErrorMessage)
	}

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected one event per channel completion, got %d", len(events))
	}
	outcomes := map[string]bool{}
	for _, ev := range events {
		outcomes[ev.Channel] = ev.Success
	}
	if !outcomes[models.ChannelCellBroadcast] || outcomes[models.ChannelFcm] {
		t.Fatalf("unexpected event outcomes: %v", outcomes)
	}
}

func TestDisabledChannelSkip(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{{
		Success:   true,
		Skipped:   true,
		MessageID: "SKIPPED-eq-skip",
		Message:   "Cell Broadcast disabled",
	}}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{successResult("FCM-1", 200)}}
	svc, st, _ := newTestService(cb, fcm)

	if err := svc.Publish(quakeAlert("eq-skip")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	svc.Drain()

	record, err := st.Get(context.Background(), "eq-skip")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.CellBroadcastStatus != models.StatusSkipped {
		t.Fatalf("expected SKIPPED, got %s", record.CellBroadcastStatus)
	}
	if record.FailureCount != 0 {
		t.Fatalf("skip must not count as failure, got %d", record.FailureCount)
	}
	if record.RecipientCount != 200 {
		t.Fatalf("skipped channel must add zero recipients, got total %d", record.RecipientCount)
	}
}

func TestRetryTargetsOnlyFailedChannel(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-keep", 1000)}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{
		failureResult("FCM error: invalid registration token"),
		successResult("FCM-2", 300),
	}}
	svc, st, _ := newTestService(cb, fcm)

	if err := svc.Publish(quakeAlert("eq-retry")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	svc.Drain()

	if err := svc.RetryFailed(3); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	svc.Drain()

	if cb.callCount() != 1 {
		t.Fatalf("successful channel must not be retried, got %d calls", cb.callCount())
	}
	if fcm.callCount() != 2 {
		t.Fatalf("failed channel should be retried once, got %d calls", fcm.callCount())
	}

	record, err := st.Get(context.Background(), "eq-retry")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", record.RetryCount)
	}
	if record.LastRetryAt == nil {
		t.Fatalf("expected last retry timestamp to be set")
	}
	if record.CellBroadcastMessageID != "CB-keep" {
		t.Fatalf("retry must not touch the successful channel's message id, got %q", record.CellBroadcastMessageID)
	}
	if record.FcmStatus != models.StatusSuccess {
		t.Fatalf("expected fcm SUCCESS after retry, got %s", record.FcmStatus)
	}
}

func TestRetryBookkeepingOncePerRecord(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{
		failureResult("telecom down"),
		successResult("CB-2", 10),
	}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{
		failureResult("fcm down"),
		successResult("FCM-2", 10),
	}}
	svc, st, _ := newTestService(cb, fcm)

	if err := svc.Publish(quakeAlert("eq-both-failed")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	svc.Drain()

	if err := svc.RetryFailed(3); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	svc.Drain()

	record, err := st.Get(context.Background(), "eq-both-failed")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.RetryCount != 1 {
		t.Fatalf("retry count must increment once per sweep regardless of channel count, got %d", record.RetryCount)
	}
	if cb.callCount() != 2 || fcm.callCount() != 2 {
		t.Fatalf("expected both failed channels redriven, got cb=%d fcm=%d", cb.callCount(), fcm.callCount())
	}
}

func TestRetryCeilingExcludesExhaustedRecords(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-1", 10)}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{successResult("FCM-1", 10)}}
	svc, st, _ := newTestService(cb, fcm)

	record := models.PublishedAlert{
		AlertID:             "eq-exhausted",
		Severity:            "HIGH",
		AlertType:           "EARTHQUAKE",
		DetectedAt:          time.Now(),
		PublishedAt:         time.Now(),
		CellBroadcastStatus: models.StatusSuccess,
		FcmStatus:           models.StatusFailed,
		RetryCount:          3,
	}
	if _, err := st.CreateIfAbsent(context.Background(), record); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if err := svc.RetryFailed(3); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	svc.Drain()

	if cb.callCount() != 0 || fcm.callCount() != 0 {
		t.Fatalf("exhausted record must not be redriven, got cb=%d fcm=%d", cb.callCount(), fcm.callCount())
	}
	got, err := st.Get(context.Background(), "eq-exhausted")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.RetryCount != 3 || got.FcmStatus != models.StatusFailed {
		t.Fatalf("exhausted record must stay untouched, got retry=%d fcm=%s", got.RetryCount, got.FcmStatus)
	}
}

func TestMergeRaceYieldsSameTotals(t *testing.T) {
	t.Parallel()

	run := func(cbFirst bool) models.PublishedAlert {
		cbGate := make(chan struct{})
		fcmGate := make(chan struct{})
		cb := &scriptedChannel{
			name:    models.ChannelCellBroadcast,
			results: []channels.Result{successResult("CB-1", 1000000)},
			release: cbGate,
		}
		fcm := &scriptedChannel{
			name:    models.ChannelFcm,
			results: []channels.Result{failureResult("FCM error: invalid registration token")},
			release: fcmGate,
		}
		svc, st, _ := newTestService(cb, fcm)

		if err := svc.Publish(quakeAlert("eq-order")); err != nil {
			t.Fatalf("publish: %v", err)
		}
		if cbFirst {
			close(cbGate)
			close(fcmGate)
		} else {
			close(fcmGate)
			close(cbGate)
		}
		svc.Drain()

		record, err := st.Get(context.Background(), "eq-order")
		if err != nil {
			t.Fatalf("get record: %v", err)
		}
		return record
	}

	for trial := 0; trial < 25; trial++ {
		a := run(true)
		b := run(false)
		for _, record := range []models.PublishedAlert{a, b} {
			if record.RecipientCount != 1000000 || record.SuccessCount != 1000000 || record.FailureCount != 1 {
				t.Fatalf("trial %d: lost update, counters %d/%d/%d",
					trial, record.RecipientCount, record.SuccessCount, record.FailureCount)
			}
			if record.ErrorMessage == "" {
				t.Fatalf("trial %d: lost error text", trial)
			}
		}
	}
}

func TestEarthquakeScenarioEndToEnd(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-1", 1000000)}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{successResult("FCM-1", 200000)}}
	svc, st, sink := newTestService(cb, fcm)

	if err := svc.Publish(quakeAlert("eq-001")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	svc.Drain()

	record, err := st.Get(context.Background(), "eq-001")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Message != "Earthquake M5.0 detected at California" {
		t.Fatalf("unexpected rendered message %q", record.Message)
	}
	terminal := func(s models.PublishStatus) bool {
		return s == models.StatusSuccess || s == models.StatusFailed || s == models.StatusSkipped
	}
	if !terminal(record.CellBroadcastStatus) || !terminal(record.FcmStatus) {
		t.Fatalf("expected both channels terminal, got %s/%s", record.CellBroadcastStatus, record.FcmStatus)
	}
	if record.RecipientCount <= 0 {
		t.Fatalf("expected recipients > 0, got %d", record.RecipientCount)
	}
	if len(sink.snapshot()) != 2 {
		t.Fatalf("expected one result event per channel, got %d", len(sink.snapshot()))
	}
}

func TestWorkerPoolProcessesQueuedAlerts(t *testing.T) {
	t.Parallel()

	cb := &scriptedChannel{name: models.ChannelCellBroadcast, results: []channels.Result{successResult("CB-1", 10)}}
	fcm := &scriptedChannel{name: models.ChannelFcm, results: []channels.Result{successResult("FCM-1", 10)}}
	svc, st, _ := newTestService(cb, fcm)

	var wg sync.WaitGroup
	svc.Start(&wg)
	defer func() {
		svc.Stop()
		wg.Wait()
	}()

	svc.Enqueue(quakeAlert("eq-queued-1"))
	svc.Enqueue(quakeAlert("eq-queued-2"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		records, err := st.ListAll(context.Background())
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if len(records) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		time.Sleep(10 * time.Millisecond)
	}
	svc.Drain()
}
