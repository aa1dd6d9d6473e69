// Package usecase implements the delivery pipeline: the executor, the
// retry/dead-letter manager, the queue consumer and delivery log administration.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/mailpipe/internal/broker"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

// DeliveryLogRepository persists delivery log entries.
type DeliveryLogRepository interface {
	// Save inserts the entry or updates the row with the same ID.
	Save(ctx context.Context, entry *deliveryDomain.DeliveryLog) error

	// List returns entries newest first.
	List(
		ctx context.Context,
		filter deliveryDomain.DeliveryLogFilter,
		offset, limit int,
	) ([]*deliveryDomain.DeliveryLog, error)

	// DeleteOlderThan removes entries created before olderThan, or only
	// counts them when dryRun is true.
	DeleteOlderThan(ctx context.Context, olderThan time.Time, dryRun bool) (int64, error)
}

// MailSender is the mail transfer client.
type MailSender interface {
	// Send transmits one mail and returns the transport message id.
	Send(ctx context.Context, mail *deliveryDomain.OutgoingMail) (string, error)
}

// StatusSink receives best-effort delivery status events.
type StatusSink interface {
	Notify(ctx context.Context, event *deliveryDomain.StatusEvent) error
}

// DeadLetterSink receives terminally failed requests.
type DeadLetterSink interface {
	Publish(ctx context.Context, deadLetter *deliveryDomain.DeadLetter) error
}

// RequestPublisher puts a request back on the delivery queue.
type RequestPublisher interface {
	Enqueue(ctx context.Context, req *deliveryDomain.DeliveryRequest) error
}

// MessageSource yields queue messages one at a time. Commit acknowledges.
type MessageSource interface {
	Fetch(ctx context.Context) (*broker.Message, error)
	Commit(ctx context.Context, msg *broker.Message) error
}

// DeliveryUseCase runs one request through the pipeline.
type DeliveryUseCase interface {
	// Deliver returns nil for duplicates and successful sends. Breaker
	// refusals and transport failures are returned for retry handling.
	Deliver(ctx context.Context, req *deliveryDomain.DeliveryRequest) error
}

// RetryUseCase decides between delayed re-delivery and dead-lettering.
type RetryUseCase interface {
	// HandleFailure schedules a re-delivery while retries remain, otherwise
	// dead-letters req with cause.
	HandleFailure(ctx context.Context, req *deliveryDomain.DeliveryRequest, cause error) (deliveryDomain.RetryDecision, error)

	// DeadLetterInvalid routes a payload that cannot be delivered at all.
	// msg is nil when the payload did not decode.
	DeadLetterInvalid(ctx context.Context, payload []byte, msg *deliveryDomain.QueueMessage, cause error) error

	// Pending returns the number of scheduled re-deliveries.
	Pending() int

	// Close cancels pending re-deliveries and waits for in-flight ones.
	Close()
}

// ConsumerUseCase drives the queue consumer loop.
type ConsumerUseCase interface {
	// Start consumes until ctx is cancelled.
	Start(ctx context.Context) error

	// ProcessMessage handles one message and acknowledges it.
	ProcessMessage(ctx context.Context, msg *broker.Message) error
}

// DeliveryLogUseCase exposes delivery logs to operators.
type DeliveryLogUseCase interface {
	List(
		ctx context.Context,
		filter deliveryDomain.DeliveryLogFilter,
		offset, limit int,
	) ([]*deliveryDomain.DeliveryLog, error)

	DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error)
}
