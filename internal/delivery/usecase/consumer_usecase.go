package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/mailpipe/internal/broker"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// ConsumerConfig holds queue consumer settings.
type ConsumerConfig struct {
	// FetchErrorBackoff is the pause after a failed fetch.
	FetchErrorBackoff time.Duration
	// HandoffRetryDelay is the first pause after a failed retry or
	// dead-letter handoff; it doubles up to HandoffMaxDelay.
	HandoffRetryDelay time.Duration
	HandoffMaxDelay   time.Duration
}

// consumerUseCase processes one message at a time. Failed deliveries are
// handed to the retry manager, which schedules asynchronously, so the loop
// never waits on a delivery backoff.
//
// Broker commits are cumulative per partition, so the loop never moves past
// a message whose handoff failed: the handoff is retried until it succeeds
// or the context ends, and then the loop stops with the message uncommitted.
type consumerUseCase struct {
	config   ConsumerConfig
	source   MessageSource
	delivery DeliveryUseCase
	retry    RetryUseCase
	logger   *slog.Logger
}

// NewConsumerUseCase creates the queue consumer.
func NewConsumerUseCase(
	config ConsumerConfig,
	source MessageSource,
	delivery DeliveryUseCase,
	retry RetryUseCase,
	logger *slog.Logger,
) ConsumerUseCase {
	if config.FetchErrorBackoff <= 0 {
		config.FetchErrorBackoff = time.Second
	}
	if config.HandoffRetryDelay <= 0 {
		config.HandoffRetryDelay = time.Second
	}
	if config.HandoffMaxDelay <= 0 {
		config.HandoffMaxDelay = 30 * time.Second
	}
	if config.HandoffMaxDelay < config.HandoffRetryDelay {
		config.HandoffMaxDelay = config.HandoffRetryDelay
	}
	return &consumerUseCase{
		config:   config,
		source:   source,
		delivery: delivery,
		retry:    retry,
		logger:   logger,
	}
}

func (c *consumerUseCase) Start(ctx context.Context) error {
	c.logger.Info("starting queue consumer")

	for {
		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("stopping queue consumer")
				return nil
			}
			c.logger.Error("failed to fetch message", slog.Any("error", err))
			select {
			case <-ctx.Done():
				c.logger.Info("stopping queue consumer")
				return nil
			case <-time.After(c.config.FetchErrorBackoff):
			}
			continue
		}

		if err := c.ProcessMessage(ctx, msg); err != nil {
			attrs := []any{
				slog.String("topic", msg.Topic),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err),
			}
			if ctx.Err() != nil {
				c.logger.Warn("stopping queue consumer with message unacknowledged", attrs...)
				return nil
			}
			if apperrors.Is(err, ErrRetrySchedulerClosed) {
				c.logger.Error("stopping queue consumer, retry manager closed", attrs...)
				return err
			}
			// only the commit itself can fail here; a later commit covers it
			c.logger.Error("failed to commit message", attrs...)
		}
	}
}

// ProcessMessage commits msg once it was delivered or handed off to the
// retry/dead-letter manager. It returns an error with msg uncommitted only
// when the handoff could not complete before ctx ended.
func (c *consumerUseCase) ProcessMessage(ctx context.Context, msg *broker.Message) error {
	queueMsg, err := deliveryDomain.DecodeQueueMessage(msg.Value)
	if err == nil {
		err = queueMsg.Validate()
	}
	if err != nil {
		invalidErr := err
		if err := c.handoff(ctx, msg, func(ctx context.Context) error {
			return c.retry.DeadLetterInvalid(ctx, msg.Value, queueMsg, invalidErr)
		}); err != nil {
			return err
		}
		return c.source.Commit(ctx, msg)
	}

	req := queueMsg.ToDeliveryRequest()
	if req.RequestID == "" {
		req.RequestID = uuid.Must(uuid.NewV7()).String()
		c.logger.Warn("message without request id, generated one", slog.String("request_id", req.RequestID))
	}

	if deliverErr := c.delivery.Deliver(ctx, req); deliverErr != nil {
		var decision deliveryDomain.RetryDecision
		if err := c.handoff(ctx, msg, func(ctx context.Context) error {
			var retryErr error
			decision, retryErr = c.retry.HandleFailure(ctx, req, deliverErr)
			return retryErr
		}); err != nil {
			return err
		}
		c.logger.Info("delivery failed",
			slog.String("request_id", req.RequestID),
			slog.String("decision", string(decision)),
			slog.Any("error", deliverErr),
		)
	}

	return c.source.Commit(ctx, msg)
}

// handoff runs fn until it succeeds, backing off between attempts. A closed
// retry manager is returned at once since no later attempt can succeed.
func (c *consumerUseCase) handoff(ctx context.Context, msg *broker.Message, fn func(context.Context) error) error {
	delay := c.config.HandoffRetryDelay
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if apperrors.Is(err, ErrRetrySchedulerClosed) {
			return err
		}

		c.logger.Error("failed to hand off message, retrying",
			slog.Int64("offset", msg.Offset),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return apperrors.Wrap(err, "failed to hand off message")
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.config.HandoffMaxDelay {
			delay = c.config.HandoffMaxDelay
		}
	}
}
