package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/mailpipe/internal/broker"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

// MockDeliveryLogRepository is a mock implementation of DeliveryLogRepository.
type MockDeliveryLogRepository struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockDeliveryLogRepository) Save(ctx context.Context, entry *deliveryDomain.DeliveryLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// List mocks the List method.
func (m *MockDeliveryLogRepository) List(
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
func (m *MockDeliveryLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	args := m.Called(ctx, olderThan, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// MockMailSender is a mock implementation of MailSender.
type MockMailSender struct {
	mock.Mock
}

// Send mocks the Send method.
func (m *MockMailSender) Send(ctx context.Context, mail *deliveryDomain.OutgoingMail) (string, error) {
	args := m.Called(ctx, mail)
	return args.String(0), args.Error(1)
}

// MockStatusSink is a mock implementation of StatusSink.
type MockStatusSink struct {
	mock.Mock
}

// Notify mocks the Notify method.
func (m *MockStatusSink) Notify(ctx context.Context, event *deliveryDomain.StatusEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockDeadLetterSink is a mock implementation of DeadLetterSink.
type MockDeadLetterSink struct {
	mock.Mock
}

// Publish mocks the Publish method.
func (m *MockDeadLetterSink) Publish(ctx context.Context, deadLetter *deliveryDomain.DeadLetter) error {
	args := m.Called(ctx, deadLetter)
	return args.Error(0)
}

// MockRequestPublisher is a mock implementation of RequestPublisher.
type MockRequestPublisher struct {
	mock.Mock
}

// Enqueue mocks the Enqueue method.
func (m *MockRequestPublisher) Enqueue(ctx context.Context, req *deliveryDomain.DeliveryRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockMessageSource is a mock implementation of MessageSource.
type MockMessageSource struct {
	mock.Mock
}

// Fetch mocks the Fetch method.
func (m *MockMessageSource) Fetch(ctx context.Context) (*broker.Message, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broker.Message), args.Error(1)
}

// Commit mocks the Commit method.
func (m *MockMessageSource) Commit(ctx context.Context, msg *broker.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockTxManager is a mock implementation of database.TxManager. Unless an
// error is configured, fn runs with the given context.
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks the WithTx method.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}
