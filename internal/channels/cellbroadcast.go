package channels

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"alert-publisher/internal/config"
	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
	"alert-publisher/internal/utils"
)

// CellBroadcast delivers alerts through a telecom cell-broadcast system.
// The transport is simulated until the real operator API is integrated;
// estimation policy and failure handling match the production contract.
type CellBroadcast struct {
	cfg    config.ChannelConfig
	logger *logging.Logger

	// simulation knobs, overridden in tests
	latency     time.Duration
	successRate float64
	roll        func() float64
}

// NewCellBroadcast builds the cell-broadcast adapter.
func NewCellBroadcast(cfg config.ChannelConfig, logger *logging.Logger) *CellBroadcast {
	return &CellBroadcast{
		cfg:         cfg,
		logger:      logger,
		latency:     time.Second,
		successRate: 0.95,
		roll:        rand.Float64,
	}
}

// Name returns the channel key used on tracking records.
func (c *CellBroadcast) Name() string {
	return models.ChannelCellBroadcast
}

// Deliver broadcasts the alert, retrying transport failures internally up to
// the configured attempt count within the configured timeout. A disabled
// channel is a successful no-op with a SKIPPED sentinel message ID.
func (c *CellBroadcast) Deliver(ctx context.Context, alert models.AlertMessage) Result {
	if !c.cfg.Enabled {
		c.logger.Infof("Cell Broadcast is disabled. Skipping alert: %s", alert.ID)
		return Result{
			Success:   true,
			Skipped:   true,
			MessageID: "SKIPPED-" + alert.ID,
			Message:   "Cell Broadcast disabled",
		}
	}

	c.logger.Infof("Broadcasting alert via Cell Broadcast: %s", alert.ID)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var result Result
	err := utils.Retry(ctx, c.logger, c.cfg.RetryAttempts, 200*time.Millisecond, func() error {
		return c.attempt(ctx, alert, &result)
	})
	if err != nil {
		c.logger.Errorf("Cell Broadcast error after retries: %v (alert %s)", err, alert.ID)
		return Result{
			Success:      false,
			FailureCount: 1,
			Message:      fmt.Sprintf("Error: %v", err),
		}
	}
	return result
}

// attempt performs one simulated broadcast call.
func (c *CellBroadcast) attempt(ctx context.Context, alert models.AlertMessage, out *Result) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.latency):
	}

	if c.roll() >= c.successRate {
		return fmt.Errorf("telecom API error: connection timeout")
	}

	messageID := fmt.Sprintf("CB-%d", time.Now().UnixMilli())
	recipients := c.estimateRecipients(alert)
	c.logger.Infof("Cell Broadcast SUCCESS - MessageID: %s, Recipients: %d, AlertID: %s",
		messageID, recipients, alert.ID)

	*out = Result{
		Success:        true,
		MessageID:      messageID,
		RecipientCount: recipients,
		// Cell broadcast reports only a flat reach estimate.
		SuccessCount: recipients,
		Message:      "Cell Broadcast sent successfully",
	}
	return nil
}

// estimateRecipients sizes the audience from the alert. Earthquakes use a
// magnitude-derived impact radius; everything else falls back to a
// severity-tiered population table.
func (c *CellBroadcast) estimateRecipients(alert models.AlertMessage) int {
	if alert.AlertType == "EARTHQUAKE" && alert.Magnitude != nil {
		radiusKm := *alert.Magnitude * 100 // M5.0 sweeps ~500km
		area := math.Pi * radiusKm * radiusKm
		return int(area * 100) // 100 people per km2
	}
	return severityRecipients(alert.Severity)
}

func severityRecipients(severity string) int {
	switch severity {
	case "CRITICAL":
		return 10000000
	case "HIGH":
		return 1000000
	case "MEDIUM":
		return 100000
	default:
		return 10000
	}
}
