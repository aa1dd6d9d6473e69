package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	"github.com/allisson/mailpipe/internal/delivery/service"
)

// MockCircuitBreaker is a mock implementation of CircuitBreaker.
type MockCircuitBreaker struct {
	mock.Mock
}

// AllowDispatch mocks the AllowDispatch method.
func (m *MockCircuitBreaker) AllowDispatch() bool {
	args := m.Called()
	return args.Bool(0)
}

// RecordFailure mocks the RecordFailure method.
func (m *MockCircuitBreaker) RecordFailure() {
	m.Called()
}

// RecordSuccess mocks the RecordSuccess method.
func (m *MockCircuitBreaker) RecordSuccess() {
	m.Called()
}

// ForceState mocks the ForceState method.
func (m *MockCircuitBreaker) ForceState(state deliveryDomain.CircuitState) {
	m.Called(state)
}

// Snapshot mocks the Snapshot method.
func (m *MockCircuitBreaker) Snapshot() deliveryDomain.CircuitSnapshot {
	args := m.Called()
	return args.Get(0).(deliveryDomain.CircuitSnapshot)
}

// Close mocks the Close method.
func (m *MockCircuitBreaker) Close() {
	m.Called()
}

// MockIdempotencyGuard is a mock implementation of IdempotencyGuard.
type MockIdempotencyGuard struct {
	mock.Mock
}

// CheckAndMark mocks the CheckAndMark method.
func (m *MockIdempotencyGuard) CheckAndMark(
	ctx context.Context,
	requestID string,
	retryCount int,
) (bool, deliveryDomain.Outcome) {
	args := m.Called(ctx, requestID, retryCount)
	return args.Bool(0), args.Get(1).(deliveryDomain.Outcome)
}

// MockTemplateResolver is a mock implementation of TemplateResolver.
type MockTemplateResolver struct {
	mock.Mock
}

// Resolve mocks the Resolve method.
func (m *MockTemplateResolver) Resolve(ctx context.Context, templateKey string) service.TemplateResolution {
	args := m.Called(ctx, templateKey)
	return args.Get(0).(service.TemplateResolution)
}
