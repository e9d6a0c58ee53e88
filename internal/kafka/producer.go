package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"alert-publisher/internal/config"
	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
)

// Producer emits one result event per channel completion, routed to the
// published or failed topic by outcome.
type Producer struct {
	published *kafka.Writer
	failed    *kafka.Writer
	logger    *logging.Logger
}

// NewProducer builds writers for both result topics.
func NewProducer(cfg config.Config, logger *logging.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:     kafka.TCP(cfg.Kafka.Broker),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		}
	}
	return &Producer{
		published: newWriter(cfg.Kafka.PublishedTopic),
		failed:    newWriter(cfg.Kafka.FailedTopic),
		logger:    logger,
	}
}

// PublishResult sends the event to the topic matching its outcome. Delivery
// of the result event is best effort; failures are logged, never propagated.
func (p *Producer) PublishResult(ctx context.Context, event models.ResultEvent) {
	writer := p.published
	if !event.Success {
		writer = p.failed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Errorf("Failed to marshal result event for %s: %v", event.AlertID, err)
		return
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AlertID),
		Value: payload,
	})
	if err != nil {
		p.logger.Errorf("Failed to publish result to Kafka topic %s: %v", writer.Topic, err)
		return
	}
	p.logger.Infof("Published %s result for alert %s to topic %s", event.Channel, event.AlertID, writer.Topic)
}

// Close shuts down both writers.
func (p *Producer) Close() error {
	if err := p.published.Close(); err != nil {
		return err
	}
	return p.failed.Close()
}
