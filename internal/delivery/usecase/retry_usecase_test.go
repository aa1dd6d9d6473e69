package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	"github.com/allisson/mailpipe/internal/delivery/usecase/mocks"
)

func TestRetryConfig_Backoff(t *testing.T) {
	config := RetryConfig{MaxRetries: 3, BaseDelay: time.Second}

	assert.Equal(t, 1*time.Second, config.Backoff(0))
	assert.Equal(t, 2*time.Second, config.Backoff(1))
	assert.Equal(t, 4*time.Second, config.Backoff(2))
}

func TestRetryUseCase_HandleFailure(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("smtp unavailable")
	config := RetryConfig{MaxRetries: 3, BaseDelay: 10 * time.Millisecond}

	t.Run("Success_SchedulesReEnqueueWithIncrementedRetryCount", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		publisher := &mocks.MockRequestPublisher{}
		deadLetters := &mocks.MockDeadLetterSink{}
		retry := NewRetryUseCase(config, publisher, deadLetters, testLogger())
		defer retry.Close()

		enqueued := make(chan *deliveryDomain.DeliveryRequest, 1)
		publisher.On("Enqueue", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			enqueued <- args.Get(1).(*deliveryDomain.DeliveryRequest)
		}).Return(nil).Once()

		req := welcomeRequest()
		req.RetryCount = 1
		decision, err := retry.HandleFailure(ctx, req, cause)

		require.NoError(t, err)
		assert.Equal(t, deliveryDomain.RetryScheduled, decision)

		select {
		case next := <-enqueued:
			assert.Equal(t, "r1", next.RequestID)
			assert.Equal(t, 2, next.RetryCount)
			assert.Equal(t, "Ann", next.Variables["name"])
		case <-time.After(2 * time.Second):
			t.Fatal("request was not re-enqueued")
		}
		assert.Equal(t, 1, req.RetryCount)
		deadLetters.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Success_BackoffDelaysReEnqueue", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		publisher := &mocks.MockRequestPublisher{}
		slow := RetryConfig{MaxRetries: 3, BaseDelay: 50 * time.Millisecond}
		retry := NewRetryUseCase(slow, publisher, &mocks.MockDeadLetterSink{}, testLogger())
		defer retry.Close()

		enqueuedAt := make(chan time.Time, 1)
		publisher.On("Enqueue", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			enqueuedAt <- time.Now()
		}).Return(nil).Once()

		req := welcomeRequest()
		req.RetryCount = 2
		start := time.Now()
		_, err := retry.HandleFailure(ctx, req, cause)
		require.NoError(t, err)
		assert.Equal(t, 1, retry.Pending())

		select {
		case at := <-enqueuedAt:
			assert.GreaterOrEqual(t, at.Sub(start), slow.Backoff(2))
		case <-time.After(2 * time.Second):
			t.Fatal("request was not re-enqueued")
		}
	})

	t.Run("Success_ExhaustedRetriesAreDeadLettered", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		publisher := &mocks.MockRequestPublisher{}
		deadLetters := &mocks.MockDeadLetterSink{}
		retry := NewRetryUseCase(config, publisher, deadLetters, testLogger())
		defer retry.Close()

		deadLetters.On("Publish", ctx, mock.MatchedBy(func(dl *deliveryDomain.DeadLetter) bool {
			return dl.Request != nil &&
				dl.Request.RequestID == "r1" &&
				dl.RetryCount == 3 &&
				dl.FailureType == deliveryDomain.FailureTypeExhausted &&
				dl.Error == "smtp unavailable"
		})).Return(nil).Once()

		req := welcomeRequest()
		req.RetryCount = 3
		decision, err := retry.HandleFailure(ctx, req, cause)

		require.NoError(t, err)
		assert.Equal(t, deliveryDomain.RetryDeadLettered, decision)
		assert.Equal(t, 0, retry.Pending())
		publisher.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
		deadLetters.AssertExpectations(t)
	})

	t.Run("Error_DeadLetterPublishFails", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		deadLetters := &mocks.MockDeadLetterSink{}
		retry := NewRetryUseCase(config, &mocks.MockRequestPublisher{}, deadLetters, testLogger())
		defer retry.Close()

		deadLetters.On("Publish", ctx, mock.Anything).Return(errors.New("broker down"))

		req := welcomeRequest()
		req.RetryCount = 3
		decision, err := retry.HandleFailure(ctx, req, cause)

		assert.Error(t, err)
		assert.Empty(t, decision)
	})

	t.Run("Success_FailedReEnqueueIsDeadLetteredAsRequeueFailed", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		publisher := &mocks.MockRequestPublisher{}
		deadLetters := &mocks.MockDeadLetterSink{}
		retry := NewRetryUseCase(config, publisher, deadLetters, testLogger())
		retry.(*retryUseCase).requeueDelay = time.Millisecond
		defer retry.Close()

		published := make(chan *deliveryDomain.DeadLetter, 1)
		publisher.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("broker down")).Times(requeueAttempts)
		deadLetters.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			published <- args.Get(1).(*deliveryDomain.DeadLetter)
		}).Return(nil).Once()

		req := welcomeRequest()
		req.RetryCount = 1
		_, err := retry.HandleFailure(ctx, req, cause)
		require.NoError(t, err)

		select {
		case dl := <-published:
			assert.Equal(t, "r1", dl.Request.RequestID)
			assert.Equal(t, deliveryDomain.FailureTypeRequeueFailed, dl.FailureType)
			assert.Equal(t, 2, dl.RetryCount)
			assert.Contains(t, dl.Error, "broker down")
		case <-time.After(2 * time.Second):
			t.Fatal("failed re-enqueue was not dead-lettered")
		}
		publisher.AssertNumberOfCalls(t, "Enqueue", requeueAttempts)
	})

	t.Run("Success_TransientReEnqueueFailureIsRetried", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		publisher := &mocks.MockRequestPublisher{}
		deadLetters := &mocks.MockDeadLetterSink{}
		retry := NewRetryUseCase(config, publisher, deadLetters, testLogger())
		retry.(*retryUseCase).requeueDelay = time.Millisecond
		defer retry.Close()

		enqueued := make(chan struct{}, 1)
		publisher.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("leader election")).Once()
		publisher.On("Enqueue", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			enqueued <- struct{}{}
		}).Return(nil).Once()

		_, err := retry.HandleFailure(ctx, welcomeRequest(), cause)
		require.NoError(t, err)

		select {
		case <-enqueued:
		case <-time.After(2 * time.Second):
			t.Fatal("request was not re-enqueued after a transient failure")
		}
		deadLetters.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Error_AfterClose", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		retry := NewRetryUseCase(config, &mocks.MockRequestPublisher{}, &mocks.MockDeadLetterSink{}, testLogger())
		retry.Close()

		_, err := retry.HandleFailure(ctx, welcomeRequest(), cause)

		assert.ErrorIs(t, err, ErrRetrySchedulerClosed)
	})
}

func TestRetryUseCase_CloseCancelsPendingRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	publisher := &mocks.MockRequestPublisher{}
	retry := NewRetryUseCase(
		RetryConfig{MaxRetries: 3, BaseDelay: time.Hour},
		publisher,
		&mocks.MockDeadLetterSink{},
		testLogger(),
	)

	for i := 0; i < 3; i++ {
		req := welcomeRequest()
		req.RetryCount = i
		_, err := retry.HandleFailure(context.Background(), req, errors.New("boom"))
		require.NoError(t, err)
	}
	require.Equal(t, 3, retry.Pending())

	retry.Close()

	assert.Equal(t, 0, retry.Pending())
	publisher.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestRetryUseCase_DeadLetterInvalid(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"recipient_email":"not-an-email"}`)

	t.Run("Success", func(t *testing.T) {
		deadLetters := &mocks.MockDeadLetterSink{}
		retry := NewRetryUseCase(RetryConfig{MaxRetries: 3}, &mocks.MockRequestPublisher{}, deadLetters, testLogger())
		defer retry.Close()

		deadLetters.On("Publish", ctx, mock.MatchedBy(func(dl *deliveryDomain.DeadLetter) bool {
			return dl.FailureType == deliveryDomain.FailureTypeValidation &&
				string(dl.RawPayload) == string(payload) &&
				dl.Error == "invalid"
		})).Return(nil).Once()

		err := retry.DeadLetterInvalid(ctx, payload, nil, errors.New("invalid"))

		assert.NoError(t, err)
		deadLetters.AssertExpectations(t)
	})

	t.Run("Error_PublishFails", func(t *testing.T) {
		deadLetters := &mocks.MockDeadLetterSink{}
		retry := NewRetryUseCase(RetryConfig{MaxRetries: 3}, &mocks.MockRequestPublisher{}, deadLetters, testLogger())
		defer retry.Close()

		deadLetters.On("Publish", ctx, mock.Anything).Return(errors.New("broker down"))

		err := retry.DeadLetterInvalid(ctx, payload, nil, errors.New("invalid"))

		assert.Error(t, err)
	})
}
