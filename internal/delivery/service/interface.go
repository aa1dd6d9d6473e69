// Package service provides the reliability building blocks of the delivery
// pipeline: circuit breaker, idempotency guard, template resolution and
// placeholder rendering.
package service

import (
	"context"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

// Cache is the key/value store with expiring entries shared by all workers.
type Cache interface {
	// Get returns the value stored at key. found is false on a miss.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value at key with the given expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value at key only when the key is absent.
	// Returns true when the value was written.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// TemplateProvider fetches templates from the remote template service.
type TemplateProvider interface {
	FetchTemplate(ctx context.Context, templateKey string) (*deliveryDomain.Template, error)
}

// CircuitBreaker gates dispatch after repeated failures. State is process-local.
type CircuitBreaker interface {
	// AllowDispatch reports whether a dispatch may be attempted now.
	AllowDispatch() bool

	// RecordFailure counts a failed dispatch and opens the breaker at the threshold.
	RecordFailure()

	// RecordSuccess closes the breaker and resets the failure count.
	RecordSuccess()

	// ForceState is an administrative override that sets state and resets counters.
	ForceState(state deliveryDomain.CircuitState)

	// Snapshot returns the current state and failure count.
	Snapshot() deliveryDomain.CircuitSnapshot

	// Close cancels the pending reset timer, if any.
	Close()
}

// IdempotencyGuard suppresses redundant broker deliveries of the same attempt.
type IdempotencyGuard interface {
	// CheckAndMark returns true when the attempt was already seen. On cache
	// failure it returns false with a degraded outcome so delivery proceeds.
	CheckAndMark(ctx context.Context, requestID string, retryCount int) (bool, deliveryDomain.Outcome)
}

// TemplateResolver resolves a template key to usable content. It never fails.
type TemplateResolver interface {
	Resolve(ctx context.Context, templateKey string) TemplateResolution
}

// Renderer substitutes {{name}} placeholders.
type Renderer interface {
	Render(tmpl deliveryDomain.Template, variables map[string]string) deliveryDomain.RenderedTemplate
}
