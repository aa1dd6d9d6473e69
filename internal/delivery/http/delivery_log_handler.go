package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/mailpipe/internal/delivery/http/dto"
	deliveryUseCase "github.com/allisson/mailpipe/internal/delivery/usecase"
	"github.com/allisson/mailpipe/internal/httputil"
	customValidation "github.com/allisson/mailpipe/internal/validation"
)

// DeliveryLogHandler handles HTTP requests for delivery log operations.
type DeliveryLogHandler struct {
	deliveryLogUseCase deliveryUseCase.DeliveryLogUseCase
	logger             *slog.Logger
}

// NewDeliveryLogHandler creates a new delivery log handler with required dependencies.
func NewDeliveryLogHandler(
	deliveryLogUseCase deliveryUseCase.DeliveryLogUseCase,
	logger *slog.Logger,
) *DeliveryLogHandler {
	return &DeliveryLogHandler{
		deliveryLogUseCase: deliveryLogUseCase,
		logger:             logger,
	}
}

// ListHandler retrieves delivery logs newest first.
// GET /v1/delivery-logs?offset=0&limit=50&request_id=r1&user_id=u1&status=failed
// All filters are optional and combined with AND.
func (h *DeliveryLogHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var query dto.ListDeliveryLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := query.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	entries, err := h.deliveryLogUseCase.List(c.Request.Context(), query.Filter(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDeliveryLogsToListResponse(entries))
}
