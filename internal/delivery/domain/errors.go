package domain

import (
	"github.com/allisson/mailpipe/internal/errors"
)

// Delivery pipeline errors.
var (
	// ErrServiceUnavailable indicates the circuit breaker refused the dispatch.
	ErrServiceUnavailable = errors.Wrap(errors.ErrUnavailable, "email service unavailable: circuit breaker open")

	// ErrTransportFailure indicates the mail transfer client failed to send.
	ErrTransportFailure = errors.New("mail transport failure")

	// ErrPersistenceFailure indicates a delivery log entry could not be written.
	ErrPersistenceFailure = errors.New("delivery log persistence failure")

	// ErrTemplateResolutionDegraded indicates a built-in default template was used.
	ErrTemplateResolutionDegraded = errors.New("template resolution degraded")

	// ErrStatusNotificationFailed indicates the status sink did not accept an event.
	ErrStatusNotificationFailed = errors.New("status notification failed")

	// ErrInvalidDeliveryRequest indicates a queue message failed validation.
	ErrInvalidDeliveryRequest = errors.Wrap(errors.ErrInvalidInput, "invalid delivery request")

	// ErrUndecodableMessage indicates a queue message is not valid JSON.
	ErrUndecodableMessage = errors.Wrap(errors.ErrInvalidInput, "undecodable queue message")

	// ErrTemplateNotFound indicates the remote template provider has no such template.
	ErrTemplateNotFound = errors.Wrap(errors.ErrNotFound, "template not found")

	// ErrInvalidCircuitState indicates an unknown circuit breaker state name.
	ErrInvalidCircuitState = errors.Wrap(errors.ErrInvalidInput, "invalid circuit breaker state")
)
