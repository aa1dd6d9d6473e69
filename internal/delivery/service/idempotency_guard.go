package service

import (
	"context"
	"fmt"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// idempotencyGuard marks attempts with an atomic set-if-absent. Marks are
// scoped to request id plus retry count so internal retries pass the guard
// while broker redelivery of the same attempt is suppressed.
type idempotencyGuard struct {
	cache Cache
	ttl   time.Duration
}

// NewIdempotencyGuard creates an IdempotencyGuard backed by cache.
func NewIdempotencyGuard(cache Cache, ttl time.Duration) IdempotencyGuard {
	return &idempotencyGuard{cache: cache, ttl: ttl}
}

// IdempotencyKey returns the cache key marking one attempt of a request.
func IdempotencyKey(requestID string, retryCount int) string {
	return fmt.Sprintf("idempotency:%s:%d", requestID, retryCount)
}

func (g *idempotencyGuard) CheckAndMark(
	ctx context.Context,
	requestID string,
	retryCount int,
) (bool, deliveryDomain.Outcome) {
	marked, err := g.cache.SetNX(
		ctx,
		IdempotencyKey(requestID, retryCount),
		time.Now().UTC().Format(time.RFC3339),
		g.ttl,
	)
	if err != nil {
		return false, deliveryDomain.Degraded(apperrors.Wrap(err, "idempotency check failed open"))
	}
	return !marked, deliveryDomain.Succeeded()
}
