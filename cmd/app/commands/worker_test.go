package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/mailpipe/internal/delivery/usecase/mocks"
)

// fakeServer blocks in Start until Shutdown is called.
type fakeServer struct {
	startErr error
	stopped  chan struct{}
	shutdown atomic.Int32
}

func newFakeServer(startErr error) *fakeServer {
	return &fakeServer{startErr: startErr, stopped: make(chan struct{})}
}

func (f *fakeServer) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stopped
	return nil
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	if f.shutdown.Add(1) == 1 && f.startErr == nil {
		close(f.stopped)
	}
	return nil
}

func blockingConsumer() *mocks.MockConsumerUseCase {
	consumer := &mocks.MockConsumerUseCase{}
	consumer.On("Start", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil).
		Once()
	return consumer
}

func TestRunWorker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("stops-on-cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		consumer := blockingConsumer()
		srv := newFakeServer(nil)

		done := make(chan error, 1)
		go func() {
			done <- runWorker(ctx, logger, consumer, []server{srv}, time.Second)
		}()

		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
		assert.Equal(t, int32(1), srv.shutdown.Load())
		consumer.AssertExpectations(t)
	})

	t.Run("server-failure-stops-consumer", func(t *testing.T) {
		consumer := blockingConsumer()
		failing := newFakeServer(errors.New("address in use"))
		healthy := newFakeServer(nil)

		err := runWorker(context.Background(), logger, consumer, []server{failing, healthy}, time.Second)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "address in use")
		assert.Equal(t, int32(1), healthy.shutdown.Load())
		consumer.AssertExpectations(t)
	})

	t.Run("consumer-failure-stops-servers", func(t *testing.T) {
		consumer := &mocks.MockConsumerUseCase{}
		consumer.On("Start", mock.Anything).Return(errors.New("fetch loop crashed")).Once()
		srv := newFakeServer(nil)

		err := runWorker(context.Background(), logger, consumer, []server{srv}, time.Second)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "consumer error")
		assert.Equal(t, int32(1), srv.shutdown.Load())
	})
}
