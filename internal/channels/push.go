package channels

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"alert-publisher/internal/config"
	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
	"alert-publisher/internal/utils"
)

// FcmPush delivers alerts as push notifications to topic-subscribed devices.
// The transport is simulated until Firebase credentials are wired in.
type FcmPush struct {
	cfg    config.ChannelConfig
	logger *logging.Logger

	latency     time.Duration
	successRate float64
	roll        func() float64
}

// NewFcmPush builds the push-notification adapter.
func NewFcmPush(cfg config.ChannelConfig, logger *logging.Logger) *FcmPush {
	return &FcmPush{
		cfg:         cfg,
		logger:      logger,
		latency:     500 * time.Millisecond,
		successRate: 0.98,
		roll:        rand.Float64,
	}
}

// Name returns the channel key used on tracking records.
func (f *FcmPush) Name() string {
	return models.ChannelFcm
}

// Deliver sends the push notification with channel-local retries inside the
// configured timeout. A disabled channel is a successful no-op.
func (f *FcmPush) Deliver(ctx context.Context, alert models.AlertMessage) Result {
	if !f.cfg.Enabled {
		f.logger.Infof("FCM is disabled. Skipping alert: %s", alert.ID)
		return Result{
			Success:   true,
			Skipped:   true,
			MessageID: "SKIPPED-" + alert.ID,
			Message:   "FCM disabled",
		}
	}

	f.logger.Infof("Sending FCM notification for alert: %s", alert.ID)

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var result Result
	err := utils.Retry(ctx, f.logger, f.cfg.RetryAttempts, 200*time.Millisecond, func() error {
		return f.attempt(ctx, alert, &result)
	})
	if err != nil {
		f.logger.Errorf("FCM error after retries: %v (alert %s)", err, alert.ID)
		return Result{
			Success:      false,
			FailureCount: 1,
			Message:      fmt.Sprintf("Error: %v", err),
		}
	}
	return result
}

// attempt performs one simulated FCM send.
func (f *FcmPush) attempt(ctx context.Context, alert models.AlertMessage, out *Result) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.latency):
	}

	if f.roll() >= f.successRate {
		return fmt.Errorf("FCM error: invalid registration token")
	}

	messageID := fmt.Sprintf("FCM-%d", time.Now().UnixMilli())
	recipients := f.subscriberCount(alert.Severity)
	f.logger.Infof("FCM SUCCESS - MessageID: %s, Recipients: %d, AlertID: %s",
		messageID, recipients, alert.ID)

	*out = Result{
		Success:        true,
		MessageID:      messageID,
		RecipientCount: recipients,
		SuccessCount:   recipients,
		Message:        "FCM notification sent successfully",
	}
	return nil
}

// subscriberCount estimates reach from the topic subscriber tiers. This table
// is FCM policy and intentionally separate from the cell-broadcast one.
func (f *FcmPush) subscriberCount(severity string) int {
	switch severity {
	case "CRITICAL":
		return 500000
	case "HIGH":
		return 200000
	case "MEDIUM":
		return 50000
	default:
		return 10000
	}
}
