package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// ConsumerConfig holds Kafka consumer settings.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one message at a time from a consumer group.
type Consumer struct {
	reader messageReader
}

// NewConsumer creates a Consumer. Offsets are only committed through Commit.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, apperrors.New("kafka topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader}, nil
}

// Fetch blocks until a message is available or ctx is done.
func (c *Consumer) Fetch(ctx context.Context) (*Message, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	return fromKafka(m), nil
}

// Commit acknowledges msg.
func (c *Consumer) Commit(ctx context.Context, msg *Message) error {
	if err := c.reader.CommitMessages(ctx, msg.raw); err != nil {
		return apperrors.Wrap(err, "failed to commit kafka message")
	}
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
