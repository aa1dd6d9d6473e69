// Package sink delivers pipeline output to Kafka topics, the status
// webhook, or the log.
package sink

import (
	"context"
	"encoding/json"
	"strconv"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// Message header names set on published records.
const (
	HeaderRequestID   = "request_id"
	HeaderRetryCount  = "retry_count"
	HeaderFailureType = "failure_type"
	HeaderService     = "service"
)

// Publisher writes a keyed record to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaRequestPublisher re-enqueues delivery requests on the queue topic.
type KafkaRequestPublisher struct {
	publisher Publisher
	topic     string
}

// NewKafkaRequestPublisher creates a KafkaRequestPublisher.
func NewKafkaRequestPublisher(publisher Publisher, topic string) *KafkaRequestPublisher {
	return &KafkaRequestPublisher{publisher: publisher, topic: topic}
}

// Enqueue publishes req keyed by its request id.
func (k *KafkaRequestPublisher) Enqueue(ctx context.Context, req *deliveryDomain.DeliveryRequest) error {
	payload, err := deliveryDomain.EncodeDeliveryRequest(req)
	if err != nil {
		return err
	}
	return k.publisher.Publish(ctx, k.topic, []byte(req.RequestID), payload, map[string]string{
		HeaderRequestID:  req.RequestID,
		HeaderRetryCount: strconv.Itoa(req.RetryCount),
	})
}

// KafkaDeadLetterSink publishes terminally failed requests.
type KafkaDeadLetterSink struct {
	publisher Publisher
	topic     string
}

// NewKafkaDeadLetterSink creates a KafkaDeadLetterSink.
func NewKafkaDeadLetterSink(publisher Publisher, topic string) *KafkaDeadLetterSink {
	return &KafkaDeadLetterSink{publisher: publisher, topic: topic}
}

// Publish writes dl as JSON. Records without a decoded request have no key.
func (k *KafkaDeadLetterSink) Publish(ctx context.Context, dl *deliveryDomain.DeadLetter) error {
	payload, err := json.Marshal(dl)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode dead letter")
	}

	headers := map[string]string{
		HeaderFailureType: dl.FailureType,
		HeaderService:     dl.Service,
		HeaderRetryCount:  strconv.Itoa(dl.RetryCount),
	}
	var key []byte
	if dl.Request != nil && dl.Request.RequestID != "" {
		key = []byte(dl.Request.RequestID)
		headers[HeaderRequestID] = dl.Request.RequestID
	}

	return k.publisher.Publish(ctx, k.topic, key, payload, headers)
}

// KafkaStatusSink publishes status events.
type KafkaStatusSink struct {
	publisher Publisher
	topic     string
}

// NewKafkaStatusSink creates a KafkaStatusSink.
func NewKafkaStatusSink(publisher Publisher, topic string) *KafkaStatusSink {
	return &KafkaStatusSink{publisher: publisher, topic: topic}
}

// Notify publishes event keyed by its request id.
func (k *KafkaStatusSink) Notify(ctx context.Context, event *deliveryDomain.StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode status event")
	}
	return k.publisher.Publish(ctx, k.topic, []byte(event.RequestID), payload, map[string]string{
		HeaderRequestID: event.RequestID,
		HeaderService:   event.Service,
	})
}
