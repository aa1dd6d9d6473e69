// Package repository implements delivery log persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/allisson/mailpipe/internal/database"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// PostgreSQLDeliveryLogRepository implements DeliveryLog persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLDeliveryLogRepository struct {
	db *sql.DB
}

// Save inserts the entry, or updates its mutable columns when a row with the
// same ID exists.
func (p *PostgreSQLDeliveryLogRepository) Save(ctx context.Context, entry *deliveryDomain.DeliveryLog) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO delivery_logs
			  (id, request_id, user_id, recipient, subject, status, attempts,
			   message_id, error_message, sent_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  ON CONFLICT (id) DO UPDATE SET
			   status = EXCLUDED.status,
			   message_id = EXCLUDED.message_id,
			   error_message = EXCLUDED.error_message,
			   sent_at = EXCLUDED.sent_at,
			   updated_at = EXCLUDED.updated_at`

	_, err := querier.ExecContext(
		ctx,
		query,
		entry.ID,
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
// pagination and optional filters.
func (p *PostgreSQLDeliveryLogRepository) List(
	ctx context.Context,
	filter deliveryDomain.DeliveryLogFilter,
	offset, limit int,
) ([]*deliveryDomain.DeliveryLog, error) {
	querier := database.GetTx(ctx, p.db)

	var conditions []string
	var args []any

	addCondition := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.RequestID != "" {
		addCondition("request_id", filter.RequestID)
	}
	if filter.UserID != "" {
		addCondition("user_id", filter.UserID)
	}
	if filter.Status != "" {
		addCondition("status", string(filter.Status))
	}

	query := `SELECT id, request_id, user_id, recipient, subject, status, attempts,
			  message_id, error_message, sent_at, created_at, updated_at
			  FROM delivery_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
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
		var status string
		var messageID, errorMessage sql.NullString
		var sentAt sql.NullTime

		err := rows.Scan(
			&entry.ID,
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
func (p *PostgreSQLDeliveryLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	if dryRun {
		var count int64
		err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_logs WHERE created_at < $1`, olderThan).
			Scan(&count)
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to count delivery logs")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM delivery_logs WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete delivery logs")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows count")
	}

	return count, nil
}

// NewPostgreSQLDeliveryLogRepository creates a new PostgreSQL DeliveryLog repository.
func NewPostgreSQLDeliveryLogRepository(db *sql.DB) *PostgreSQLDeliveryLogRepository {
	return &PostgreSQLDeliveryLogRepository{db: db}
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
