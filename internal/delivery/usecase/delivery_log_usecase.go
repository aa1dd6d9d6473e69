package usecase

import (
	"context"
	"time"

	"github.com/allisson/mailpipe/internal/database"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// deliveryLogUseCase implements DeliveryLogUseCase.
type deliveryLogUseCase struct {
	txManager database.TxManager
	logRepo   DeliveryLogRepository
}

// List retrieves delivery logs newest first with pagination.
func (d *deliveryLogUseCase) List(
	ctx context.Context,
	filter deliveryDomain.DeliveryLogFilter,
	offset, limit int,
) ([]*deliveryDomain.DeliveryLog, error) {
	logs, err := d.logRepo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list delivery logs")
	}
	return logs, nil
}

// DeleteOlderThan removes delivery logs older than the given number of days.
// In dry-run mode it only counts them.
func (d *deliveryLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "days must be non-negative, got %d", days)
	}

	olderThan := time.Now().UTC().AddDate(0, 0, -days)

	var count int64
	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		count, err = d.logRepo.DeleteOlderThan(ctx, olderThan, dryRun)
		return err
	})
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete delivery logs")
	}
	return count, nil
}

// NewDeliveryLogUseCase creates a new DeliveryLogUseCase.
func NewDeliveryLogUseCase(txManager database.TxManager, logRepo DeliveryLogRepository) DeliveryLogUseCase {
	return &deliveryLogUseCase{txManager: txManager, logRepo: logRepo}
}
