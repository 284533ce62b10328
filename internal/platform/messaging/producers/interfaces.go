package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher publishes one keyed JSON message to a topic. The gateway
// uses it for volume events, the relay for audit trail entries.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher parks a message the consumer gave up on, with the
// failure reason, so the original bytes survive for inspection and replay.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the slice of kafka.Writer the publishers need, kept as an
// interface so tests can swap in a recorder.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
