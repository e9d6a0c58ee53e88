package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"alert-publisher/internal/config"
	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
	"alert-publisher/internal/publisher"
)

// Consumer reads alert events from the inbound topic and feeds the publisher.
type Consumer struct {
	reader *kafka.Reader
	svc    *publisher.Service
	logger *logging.Logger
}

// NewConsumer builds a group consumer for the alerts topic.
func NewConsumer(cfg config.Config, svc *publisher.Service) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Kafka.Broker},
		GroupID:  cfg.Kafka.GroupID,
		Topic:    cfg.Kafka.AlertsTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, svc: svc, logger: svc.Logger()}
}

// Start runs the consume loop until the context is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)

		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var alert models.AlertMessage
			if err := json.Unmarshal(msg.Value, &alert); err != nil {
				c.logger.Errorf("Unmarshal alert failed at offset %d: %v", msg.Offset, err)
				continue
			}

			// Malformed alerts are rejected here and never retried.
			if alert.ID == "" || alert.Severity == "" || alert.AlertType == "" {
				c.logger.Errorf("Invalid alert at offset %d: missing id, severity, or alertType", msg.Offset)
				continue
			}

			c.logger.Infof("Consumed alert %s - Severity: %s, Partition: %d, Offset: %d",
				alert.ID, alert.Severity, msg.Partition, msg.Offset)
			c.svc.Enqueue(alert)
		}
	}()
}

// Close shuts down the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
