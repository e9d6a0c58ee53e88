package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"alert-publisher/internal/logging"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), logging.NewDiscard(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	wantErr := errors.New("permanent")
	err := Retry(context.Background(), logging.NewDiscard(), 3, time.Millisecond, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, logging.NewDiscard(), 5, time.Millisecond, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation stopped retries, got %d", calls)
	}
}
