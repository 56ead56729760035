package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// SettlementPublisher announces settled (paid) contributions to downstream consumers
type SettlementPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
