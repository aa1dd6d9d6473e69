// Package mocks provides mock implementations of delivery use cases and
// their collaborators for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/mailpipe/internal/broker"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

// MockDeliveryUseCase is a mock implementation of DeliveryUseCase.
type MockDeliveryUseCase struct {
	mock.Mock
}

// Deliver mocks the Deliver method.
func (m *MockDeliveryUseCase) Deliver(ctx context.Context, req *deliveryDomain.DeliveryRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockRetryUseCase is a mock implementation of RetryUseCase.
type MockRetryUseCase struct {
	mock.Mock
}

// HandleFailure mocks the HandleFailure method.
func (m *MockRetryUseCase) HandleFailure(
	ctx context.Context,
	req *deliveryDomain.DeliveryRequest,
	cause error,
) (deliveryDomain.RetryDecision, error) {
	args := m.Called(ctx, req, cause)
	return args.Get(0).(deliveryDomain.RetryDecision), args.Error(1)
}

// DeadLetterInvalid mocks the DeadLetterInvalid method.
func (m *MockRetryUseCase) DeadLetterInvalid(
	ctx context.Context,
	payload []byte,
	msg *deliveryDomain.QueueMessage,
	cause error,
) error {
	args := m.Called(ctx, payload, msg, cause)
	return args.Error(0)
}

// Pending mocks the Pending method.
func (m *MockRetryUseCase) Pending() int {
	args := m.Called()
	return args.Int(0)
}

// Close mocks the Close method.
func (m *MockRetryUseCase) Close() {
	m.Called()
}

// MockConsumerUseCase is a mock implementation of ConsumerUseCase.
type MockConsumerUseCase struct {
	mock.Mock
}

// Start mocks the Start method.
func (m *MockConsumerUseCase) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ProcessMessage mocks the ProcessMessage method.
func (m *MockConsumerUseCase) ProcessMessage(ctx context.Context, msg *broker.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockDeliveryLogUseCase is a mock implementation of DeliveryLogUseCase.
type MockDeliveryLogUseCase struct {
	mock.Mock
}

// List mocks the List method.
func (m *MockDeliveryLogUseCase) List(
	ctx context.Context,
	filter deliveryDomain.DeliveryLogFilter,
	offset, limit int,
) ([]*deliveryDomain.DeliveryLog, error) {
	args := m.Called(ctx, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*deliveryDomain.DeliveryLog), args.Error(1)
}

// DeleteOlderThan mocks the DeleteOlderThan method.
func (m *MockDeliveryLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	args := m.Called(ctx, days, dryRun)
	return args.Get(0).(int64), args.Error(1)
}
