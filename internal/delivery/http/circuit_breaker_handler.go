// Package http provides HTTP handlers for delivery pipeline administration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/mailpipe/internal/delivery/http/dto"
	deliveryService "github.com/allisson/mailpipe/internal/delivery/service"
	"github.com/allisson/mailpipe/internal/httputil"
	customValidation "github.com/allisson/mailpipe/internal/validation"
)

// CircuitBreakerHandler exposes the dispatch circuit breaker to operators.
type CircuitBreakerHandler struct {
	breaker deliveryService.CircuitBreaker
	logger  *slog.Logger
}

// NewCircuitBreakerHandler creates a new circuit breaker handler.
func NewCircuitBreakerHandler(
	breaker deliveryService.CircuitBreaker,
	logger *slog.Logger,
) *CircuitBreakerHandler {
	return &CircuitBreakerHandler{
		breaker: breaker,
		logger:  logger,
	}
}

// GetHandler returns the current breaker state and consecutive failure count.
// GET /v1/circuit-breaker
func (h *CircuitBreakerHandler) GetHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MapCircuitSnapshotToResponse(h.breaker.Snapshot()))
}

// UpdateHandler forces the breaker into the requested state and resets its counters.
// PUT /v1/circuit-breaker with body {"state": "CLOSED"}. Returns 200 OK with the new snapshot.
func (h *CircuitBreakerHandler) UpdateHandler(c *gin.Context) {
	var req dto.UpdateCircuitBreakerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	state := req.CircuitState()
	h.breaker.ForceState(state)

	h.logger.Info("circuit breaker state forced", slog.String("state", string(state)))

	c.JSON(http.StatusOK, dto.MapCircuitSnapshotToResponse(h.breaker.Snapshot()))
}
