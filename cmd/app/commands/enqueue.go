package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	deliveryUseCase "github.com/allisson/mailpipe/internal/delivery/usecase"
)

// EnqueueInput holds the flags of the enqueue command.
type EnqueueInput struct {
	RequestID   string
	UserID      string
	Recipient   string
	TemplateKey string
	// Variables are "key=value" pairs.
	Variables []string
	Priority  int
}

// enqueueResult is the JSON output of enqueue.
type enqueueResult struct {
	RequestID   string `json:"request_id"`
	Recipient   string `json:"recipient"`
	TemplateKey string `json:"template_key"`
}

// RunEnqueue validates a delivery request built from input and publishes it
// onto the queue topic. A missing request id is generated.
func RunEnqueue(
	ctx context.Context,
	publisher deliveryUseCase.RequestPublisher,
	logger *slog.Logger,
	writer io.Writer,
	input EnqueueInput,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if input.Priority < 0 {
		return fmt.Errorf("priority must be a positive number, got: %d", input.Priority)
	}

	variables, err := parseVariables(input.Variables)
	if err != nil {
		return err
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.Must(uuid.NewV7()).String()
	}

	req := &deliveryDomain.DeliveryRequest{
		RequestID:   requestID,
		UserID:      input.UserID,
		Recipient:   input.Recipient,
		TemplateKey: input.TemplateKey,
		Variables:   variables,
		Priority:    input.Priority,
	}

	if err := deliveryDomain.NewQueueMessage(req).Validate(); err != nil {
		return fmt.Errorf("invalid delivery request: %w", err)
	}

	if err := publisher.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("failed to enqueue delivery request: %w", err)
	}

	logger.Info("delivery request enqueued",
		slog.String("request_id", req.RequestID),
		slog.String("template_key", req.TemplateKey),
	)

	if format == "json" {
		return writeJSON(writer, enqueueResult{
			RequestID:   req.RequestID,
			Recipient:   req.Recipient,
			TemplateKey: req.TemplateKey,
		})
	}

	_, _ = fmt.Fprintf(writer, "Enqueued delivery request %s for %s (template %s)\n",
		req.RequestID, req.Recipient, req.TemplateKey)
	return nil
}

// parseVariables turns "key=value" pairs into a map. The value may contain '='.
func parseVariables(pairs []string) (map[string]string, error) {
	variables := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q: expected key=value", pair)
		}
		variables[key] = value
	}
	return variables, nil
}
