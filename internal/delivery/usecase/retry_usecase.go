package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

const (
	// requeueAttempts bounds the publish attempts of one re-delivery.
	requeueAttempts = 3
	// defaultRequeueDelay separates two publish attempts of one re-delivery.
	defaultRequeueDelay = 500 * time.Millisecond
)

// ErrRetrySchedulerClosed is returned when a failure arrives after Close.
var ErrRetrySchedulerClosed = apperrors.Wrap(apperrors.ErrUnavailable, "retry scheduler closed")

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	// MaxRetries is the number of re-deliveries before dead-lettering.
	MaxRetries int
	// BaseDelay is the delay of the first re-delivery; each next one doubles.
	BaseDelay time.Duration
}

// Backoff returns the delay before re-delivering a request that failed with
// the given retry count: BaseDelay * 2^retryCount.
func (c RetryConfig) Backoff(retryCount int) time.Duration {
	return c.BaseDelay * time.Duration(int64(1)<<uint(retryCount))
}

// retryUseCase re-enqueues failed requests on owned timers. Timers are
// cancelled by Close; re-deliveries pending at shutdown are lost unless the
// broker redelivers.
type retryUseCase struct {
	config       RetryConfig
	publisher    RequestPublisher
	deadLetters  DeadLetterSink
	logger       *slog.Logger
	now          func() time.Time
	requeueDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewRetryUseCase creates the retry/dead-letter manager.
func NewRetryUseCase(
	config RetryConfig,
	publisher RequestPublisher,
	deadLetters DeadLetterSink,
	logger *slog.Logger,
) RetryUseCase {
	ctx, cancel := context.WithCancel(context.Background())
	return &retryUseCase{
		config:       config,
		publisher:    publisher,
		deadLetters:  deadLetters,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		requeueDelay: defaultRequeueDelay,
		ctx:          ctx,
		cancel:       cancel,
		timers:       make(map[*time.Timer]struct{}),
	}
}

func (r *retryUseCase) HandleFailure(
	ctx context.Context,
	req *deliveryDomain.DeliveryRequest,
	cause error,
) (deliveryDomain.RetryDecision, error) {
	if req.RetryCount >= r.config.MaxRetries {
		if err := r.deadLetter(ctx, req, cause); err != nil {
			return "", err
		}
		return deliveryDomain.RetryDeadLettered, nil
	}

	delay := r.config.Backoff(req.RetryCount)
	next := req.WithNextRetry()
	if err := r.schedule(next, delay); err != nil {
		return "", err
	}

	r.logger.Info("retry scheduled",
		slog.String("request_id", req.RequestID),
		slog.Int("retry_count", next.RetryCount),
		slog.Duration("delay", delay),
		slog.Any("error", cause),
	)
	return deliveryDomain.RetryScheduled, nil
}

func (r *retryUseCase) DeadLetterInvalid(
	ctx context.Context,
	payload []byte,
	msg *deliveryDomain.QueueMessage,
	cause error,
) error {
	dl := deliveryDomain.NewValidationDeadLetter(payload, msg, cause, r.now())
	if err := r.deadLetters.Publish(ctx, dl); err != nil {
		return apperrors.Wrap(err, "failed to dead-letter invalid message")
	}
	r.logger.Warn("invalid message dead-lettered", slog.Any("error", cause))
	return nil
}

func (r *retryUseCase) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *retryUseCase) Close() {
	r.mu.Lock()
	r.closed = true
	abandoned := 0
	for timer := range r.timers {
		if timer.Stop() {
			abandoned++
		}
		delete(r.timers, timer)
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	if abandoned > 0 {
		r.logger.Warn("pending retries abandoned at shutdown", slog.Int("count", abandoned))
	}
}

func (r *retryUseCase) schedule(req *deliveryDomain.DeliveryRequest, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRetrySchedulerClosed
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if _, ok := r.timers[timer]; !ok || r.closed {
			r.mu.Unlock()
			return
		}
		delete(r.timers, timer)
		r.wg.Add(1)
		r.mu.Unlock()

		defer r.wg.Done()
		r.redeliver(req)
	})
	r.timers[timer] = struct{}{}
	return nil
}

func (r *retryUseCase) redeliver(req *deliveryDomain.DeliveryRequest) {
	var err error
	for attempt := 1; attempt <= requeueAttempts; attempt++ {
		if err = r.publisher.Enqueue(r.ctx, req); err == nil {
			return
		}

		r.logger.Error("failed to re-enqueue request",
			slog.String("request_id", req.RequestID),
			slog.Int("retry_count", req.RetryCount),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if attempt == requeueAttempts {
			break
		}

		select {
		case <-r.ctx.Done():
			r.logger.Error("re-delivery abandoned at shutdown", slog.String("request_id", req.RequestID))
			return
		case <-time.After(r.requeueDelay):
		}
	}

	dl := deliveryDomain.NewRequeueFailedDeadLetter(req, apperrors.Wrap(err, "re-enqueue failed"), r.now())
	if dlErr := r.publishDeadLetter(r.ctx, dl); dlErr != nil {
		r.logger.Error("request lost", slog.String("request_id", req.RequestID), slog.Any("error", dlErr))
	}
}

func (r *retryUseCase) deadLetter(ctx context.Context, req *deliveryDomain.DeliveryRequest, cause error) error {
	return r.publishDeadLetter(ctx, deliveryDomain.NewExhaustedDeadLetter(req, cause, r.now()))
}

func (r *retryUseCase) publishDeadLetter(ctx context.Context, dl *deliveryDomain.DeadLetter) error {
	if err := r.deadLetters.Publish(ctx, dl); err != nil {
		return apperrors.Wrap(err, "failed to dead-letter request")
	}
	r.logger.Warn("request dead-lettered",
		slog.String("request_id", dl.Request.RequestID),
		slog.Int("retry_count", dl.RetryCount),
		slog.String("failure_type", dl.FailureType),
		slog.String("error", dl.Error),
	)
	return nil
}
