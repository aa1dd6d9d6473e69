package sink

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// HTTPStatusSink reports status events with PATCH {baseURL}/notifications/status.
type HTTPStatusSink struct {
	client *resty.Client
}

// NewHTTPStatusSink creates an HTTPStatusSink.
func NewHTTPStatusSink(baseURL string, timeout time.Duration) *HTTPStatusSink {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPStatusSink{client: client}
}

// Notify sends event; any non-2xx response is an error.
func (h *HTTPStatusSink) Notify(ctx context.Context, event *deliveryDomain.StatusEvent) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(event).
		Patch("/notifications/status")
	if err != nil {
		return apperrors.Wrap(err, "failed to report status")
	}
	if resp.IsError() {
		return apperrors.Wrapf(apperrors.ErrUnavailable, "status endpoint returned %d", resp.StatusCode())
	}
	return nil
}

// LogStatusSink writes status events to the log.
type LogStatusSink struct {
	logger *slog.Logger
}

// NewLogStatusSink creates a LogStatusSink.
func NewLogStatusSink(logger *slog.Logger) *LogStatusSink {
	return &LogStatusSink{logger: logger}
}

// Notify never fails.
func (l *LogStatusSink) Notify(ctx context.Context, event *deliveryDomain.StatusEvent) error {
	attrs := []any{
		slog.String("request_id", event.RequestID),
		slog.String("status", string(event.Status)),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	l.logger.InfoContext(ctx, "delivery status", attrs...)
	return nil
}
