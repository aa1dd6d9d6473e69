package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/allisson/mailpipe/internal/database"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// MySQLDeliveryLogRepository implements DeliveryLog persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via database.GetTx().
type MySQLDeliveryLogRepository struct {
	db *sql.DB
}

// Save inserts the entry, or updates its mutable columns when a row with the
// same ID exists.
func (m *MySQLDeliveryLogRepository) Save(ctx context.Context, entry *deliveryDomain.DeliveryLog) error {
	querier := database.GetTx(ctx, m.db)

	id, err := entry.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal delivery log id")
	}

	query := `INSERT INTO delivery_logs
			  (id, request_id, user_id, recipient, subject, status, attempts,
			   message_id, error_message, sent_at, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			   status = VALUES(status),
			   message_id = VALUES(message_id),
			   error_message = VALUES(error_message),
			   sent_at = VALUES(sent_at),
			   updated_at = VALUES(updated_at)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		entry.RequestID,
		entry.UserID,
		entry.Recipient,
		entry.Subject,
		string(entry.Status),
		entry.Attempts,
		entry.MessageID,
		entry.ErrorMessage,
		entry.SentAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to save delivery log")
	}

	return nil
}

// List retrieves delivery logs ordered by created_at descending with
// pagination and optional filters. UUIDs are stored as BINARY(16) and must be
// unmarshaled.
func (m *MySQLDeliveryLogRepository) List(
	ctx context.Context,
	filter deliveryDomain.DeliveryLogFilter,
	offset, limit int,
) ([]*deliveryDomain.DeliveryLog, error) {
	querier := database.GetTx(ctx, m.db)

	var conditions []string
	var args []any

	if filter.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, filter.RequestID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT id, request_id, user_id, recipient, subject, status, attempts,
			  message_id, error_message, sent_at, created_at, updated_at
			  FROM delivery_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list delivery logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	logs := make([]*deliveryDomain.DeliveryLog, 0)
	for rows.Next() {
		var entry deliveryDomain.DeliveryLog
		var idBinary []byte
		var status string
		var messageID, errorMessage sql.NullString
		var sentAt sql.NullTime

		err := rows.Scan(
			&idBinary,
			&entry.RequestID,
			&entry.UserID,
			&entry.Recipient,
			&entry.Subject,
			&status,
			&entry.Attempts,
			&messageID,
			&errorMessage,
			&sentAt,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan delivery log")
		}

		if err := entry.ID.UnmarshalBinary(idBinary); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal delivery log id")
		}

		entry.Status = deliveryDomain.DeliveryStatus(status)
		entry.MessageID = nullStringPtr(messageID)
		entry.ErrorMessage = nullStringPtr(errorMessage)
		entry.SentAt = nullTimePtr(sentAt)

		logs = append(logs, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate delivery logs")
	}

	return logs, nil
}

// DeleteOlderThan removes delivery logs created before olderThan. When dryRun
// is true, it only counts them.
func (m *MySQLDeliveryLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	if dryRun {
		var count int64
		err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_logs WHERE created_at < ?`, olderThan).
			Scan(&count)
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to count delivery logs")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM delivery_logs WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete delivery logs")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows count")
	}

	return count, nil
}

// NewMySQLDeliveryLogRepository creates a new MySQL DeliveryLog repository.
func NewMySQLDeliveryLogRepository(db *sql.DB) *MySQLDeliveryLogRepository {
	return &MySQLDeliveryLogRepository{db: db}
}
