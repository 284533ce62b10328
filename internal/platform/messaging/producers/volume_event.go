package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bkcjanta/roi-project/internal/config"
	"github.com/segmentio/kafka-go"
)

// VolumeEventProducer publishes binary volume events from the api gateway.
// Keyed by participant ID so one participant's events stay ordered within a
// partition.
type VolumeEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewVolumeEventProducer creates the producer and ensures the topic exists
func NewVolumeEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*VolumeEventProducer, error) {
	if cfg.VolumeTopic == "" {
		return nil, fmt.Errorf("kafka volume topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for volume event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.VolumeTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure volume topic %s exists: %w", cfg.VolumeTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.VolumeTopic,
		Balancer:     &kafka.Hash{}, // Keep a participant's events on one partition
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.VolumeTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.VolumeTopic, "count", len(messages))
			}
		},
	}

	return &VolumeEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.VolumeTopic,
	}, nil
}

// Publish sends one volume event keyed by participant ID
func (p *VolumeEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal volume event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish volume event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish volume event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published volume event", "topic", p.topic, "key", key)
	return nil
}

// Close flushes and closes the underlying writer
func (p *VolumeEventProducer) Close() error {
	p.logger.Info("Closing volume event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
