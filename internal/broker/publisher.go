package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// PublisherConfig holds Kafka producer settings.
type PublisherConfig struct {
	Brokers      []string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes messages to any topic; the topic is set per message.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a synchronous Publisher waiting for all in-sync replicas.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.New("at least one kafka broker is required")
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{writer: writer}, nil
}

// Publish writes one message. Messages with the same key land on the same
// partition, so attempts of one request keep their order.
func (p *Publisher) Publish(
	ctx context.Context,
	topic string,
	key, value []byte,
	headers map[string]string,
) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: toKafkaHeaders(headers),
	})
	if err != nil {
		return apperrors.Wrapf(err, "failed to publish to %s", topic)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
