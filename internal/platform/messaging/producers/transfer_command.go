// Package producers contains the Kafka producers for transfer commands,
// notification events, and the dead letter queue.
package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/atlas-transfers/internal/config"
)

// TransferCommandProducer publishes transfer commands drained from the
// outbox. Writes are synchronous: the poller only marks an outbox row
// processed after the broker has acknowledged the message.
type TransferCommandProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewTransferCommandProducer creates the command producer and ensures the
// topic exists
func NewTransferCommandProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TransferCommandProducer, error) {
	if cfg.CommandTopic == "" {
		return nil, fmt.Errorf("kafka command topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for command producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.CommandTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure command topic %s exists: %w", cfg.CommandTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.CommandTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &TransferCommandProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.CommandTopic,
	}, nil
}

// Publish sends one command keyed by the given key. Messages with the same
// key land on the same partition, preserving per-sender ordering.
func (p *TransferCommandProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal command message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish transfer command",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish transfer command to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published transfer command", "topic", p.topic, "key", key)
	return nil
}

func (p *TransferCommandProducer) Close() error {
	p.logger.Info("Closing transfer command producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close command kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
