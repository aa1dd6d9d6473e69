package domain

import (
	"time"
)

// ServiceName identifies this service on emitted events.
const ServiceName = "email"

// StatusEvent is pushed to the status sink after every attempt.
type StatusEvent struct {
	RequestID string         `json:"request_id"`
	Status    DeliveryStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
	Service   string         `json:"service"`
}

// NewStatusEvent builds the status event for a finished attempt.
func NewStatusEvent(requestID string, status DeliveryStatus, cause error, now time.Time) *StatusEvent {
	event := &StatusEvent{
		RequestID: requestID,
		Status:    status,
		Timestamp: now.UTC(),
		Service:   ServiceName,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	return event
}

// Dead-letter failure types.
const (
	FailureTypeExhausted     = "retries_exhausted"
	FailureTypeValidation    = "validation"
	FailureTypeRequeueFailed = "requeue_failed"
)

// DeadLetter is a terminally failed request with its final error. Request is
// nil when the payload could not be decoded; RawPayload is kept either way.
type DeadLetter struct {
	Request     *QueueMessage `json:"request,omitempty"`
	RawPayload  []byte        `json:"raw_payload,omitempty"`
	Error       string        `json:"error"`
	FailureType string        `json:"failure_type"`
	RetryCount  int           `json:"retry_count"`
	FailedAt    time.Time     `json:"failed_at"`
	Service     string        `json:"service"`
}

// NewExhaustedDeadLetter builds the record for a request that ran out of retries.
func NewExhaustedDeadLetter(req *DeliveryRequest, cause error, now time.Time) *DeadLetter {
	return &DeadLetter{
		Request:     NewQueueMessage(req),
		Error:       cause.Error(),
		FailureType: FailureTypeExhausted,
		RetryCount:  req.RetryCount,
		FailedAt:    now.UTC(),
		Service:     ServiceName,
	}
}

// NewRequeueFailedDeadLetter builds the record for a request that still had
// retries left but could not be put back on the queue.
func NewRequeueFailedDeadLetter(req *DeliveryRequest, cause error, now time.Time) *DeadLetter {
	dl := NewExhaustedDeadLetter(req, cause, now)
	dl.FailureType = FailureTypeRequeueFailed
	return dl
}

// NewValidationDeadLetter builds the record for a payload rejected before delivery.
func NewValidationDeadLetter(payload []byte, msg *QueueMessage, cause error, now time.Time) *DeadLetter {
	dl := &DeadLetter{
		Request:     msg,
		RawPayload:  payload,
		Error:       cause.Error(),
		FailureType: FailureTypeValidation,
		FailedAt:    now.UTC(),
		Service:     ServiceName,
	}
	if msg != nil {
		dl.RetryCount = msg.RetryCount
	}
	return dl
}

// RetryDecision tells what the retry manager did with a failed request.
type RetryDecision string

const (
	RetryScheduled    RetryDecision = "scheduled"
	RetryDeadLettered RetryDecision = "dead_lettered"
)
