package usecase

import (
	"context"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	"github.com/allisson/mailpipe/internal/metrics"
)

// deliveryUseCaseWithMetrics decorates DeliveryUseCase with metrics instrumentation.
type deliveryUseCaseWithMetrics struct {
	next    DeliveryUseCase
	metrics metrics.BusinessMetrics
}

// NewDeliveryUseCaseWithMetrics wraps a DeliveryUseCase with metrics recording.
func NewDeliveryUseCaseWithMetrics(useCase DeliveryUseCase, m metrics.BusinessMetrics) DeliveryUseCase {
	return &deliveryUseCaseWithMetrics{next: useCase, metrics: m}
}

// Deliver records metrics for delivery attempts.
func (d *deliveryUseCaseWithMetrics) Deliver(ctx context.Context, req *deliveryDomain.DeliveryRequest) error {
	start := time.Now()
	err := d.next.Deliver(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}

	d.metrics.RecordOperation(ctx, "delivery", "deliver", status)
	d.metrics.RecordDuration(ctx, "delivery", "deliver", time.Since(start), status)

	return err
}

// retryUseCaseWithMetrics decorates RetryUseCase with metrics instrumentation.
type retryUseCaseWithMetrics struct {
	next    RetryUseCase
	metrics metrics.BusinessMetrics
}

// NewRetryUseCaseWithMetrics wraps a RetryUseCase with metrics recording.
// The status label of handled failures is the retry decision.
func NewRetryUseCaseWithMetrics(useCase RetryUseCase, m metrics.BusinessMetrics) RetryUseCase {
	return &retryUseCaseWithMetrics{next: useCase, metrics: m}
}

// HandleFailure records the retry decision.
func (r *retryUseCaseWithMetrics) HandleFailure(
	ctx context.Context,
	req *deliveryDomain.DeliveryRequest,
	cause error,
) (deliveryDomain.RetryDecision, error) {
	decision, err := r.next.HandleFailure(ctx, req, cause)

	status := string(decision)
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, "delivery", "handle_failure", status)

	return decision, err
}

// DeadLetterInvalid records dead-lettering of invalid messages.
func (r *retryUseCaseWithMetrics) DeadLetterInvalid(
	ctx context.Context,
	payload []byte,
	msg *deliveryDomain.QueueMessage,
	cause error,
) error {
	err := r.next.DeadLetterInvalid(ctx, payload, msg, cause)

	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, "delivery", "dead_letter_invalid", status)

	return err
}

func (r *retryUseCaseWithMetrics) Pending() int {
	return r.next.Pending()
}

func (r *retryUseCaseWithMetrics) Close() {
	r.next.Close()
}
