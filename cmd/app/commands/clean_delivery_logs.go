package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	deliveryUseCase "github.com/allisson/mailpipe/internal/delivery/usecase"
)

// cleanResult is the JSON output of clean-delivery-logs.
type cleanResult struct {
	Count  int64 `json:"count"`
	Days   int   `json:"days"`
	DryRun bool  `json:"dry_run"`
}

// RunCleanDeliveryLogs deletes delivery logs older than days. With dryRun it
// only reports how many rows would be deleted.
func RunCleanDeliveryLogs(
	ctx context.Context,
	useCase deliveryUseCase.DeliveryLogUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("cleaning delivery logs",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	count, err := useCase.DeleteOlderThan(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete delivery logs: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, cleanResult{Count: count, Days: days, DryRun: dryRun}); err != nil {
			return err
		}
	} else {
		outputCleanText(writer, count, days, dryRun)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}

func outputCleanText(w io.Writer, count int64, days int, dryRun bool) {
	if dryRun {
		_, _ = fmt.Fprintf(w, "Dry-run mode: Would delete %d delivery log(s) older than %d day(s)\n", count, days)
		return
	}
	_, _ = fmt.Fprintf(w, "Successfully deleted %d delivery log(s) older than %d day(s)\n", count, days)
}
