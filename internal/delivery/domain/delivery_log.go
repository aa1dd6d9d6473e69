package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the outcome state of one delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// DeliveryLog is the durable audit record of one delivery attempt. The row is
// created pending before the send and mutated once after it; each retry gets
// its own row.
type DeliveryLog struct {
	ID           uuid.UUID
	RequestID    string
	UserID       string
	Recipient    string
	Subject      string
	Status       DeliveryStatus
	Attempts     int
	MessageID    *string
	ErrorMessage *string
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPendingDeliveryLog creates the pending entry for an attempt of req.
func NewPendingDeliveryLog(req *DeliveryRequest, subject string, now time.Time) *DeliveryLog {
	return &DeliveryLog{
		ID:        uuid.Must(uuid.NewV7()),
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Recipient: req.Recipient,
		Subject:   subject,
		Status:    DeliveryStatusPending,
		Attempts:  req.Attempt(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkDelivered records a successful send.
func (l *DeliveryLog) MarkDelivered(messageID string, now time.Time) {
	l.Status = DeliveryStatusDelivered
	l.MessageID = &messageID
	l.ErrorMessage = nil
	l.SentAt = &now
	l.UpdatedAt = now
}

// MarkFailed records a failed send.
func (l *DeliveryLog) MarkFailed(cause error, now time.Time) {
	msg := cause.Error()
	l.Status = DeliveryStatusFailed
	l.ErrorMessage = &msg
	l.UpdatedAt = now
}

// DeliveryLogFilter narrows delivery log listings. Empty fields do not filter.
type DeliveryLogFilter struct {
	RequestID string
	UserID    string
	Status    DeliveryStatus
}
