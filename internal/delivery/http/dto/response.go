package dto

import (
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

// CircuitBreakerResponse reports the breaker state.
type CircuitBreakerResponse struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// MapCircuitSnapshotToResponse converts a breaker snapshot to an API response.
func MapCircuitSnapshotToResponse(snapshot deliveryDomain.CircuitSnapshot) CircuitBreakerResponse {
	return CircuitBreakerResponse{
		State:    string(snapshot.State),
		Failures: snapshot.FailureCount,
	}
}

// DeliveryLogResponse represents a delivery log entry in API responses.
type DeliveryLogResponse struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"request_id"`
	UserID       string     `json:"user_id,omitempty"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	MessageID    *string    `json:"message_id,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MapDeliveryLogToResponse converts a domain delivery log to an API response.
func MapDeliveryLogToResponse(entry *deliveryDomain.DeliveryLog) DeliveryLogResponse {
	return DeliveryLogResponse{
		ID:           entry.ID.String(),
		RequestID:    entry.RequestID,
		UserID:       entry.UserID,
		Recipient:    entry.Recipient,
		Subject:      entry.Subject,
		Status:       string(entry.Status),
		Attempts:     entry.Attempts,
		MessageID:    entry.MessageID,
		ErrorMessage: entry.ErrorMessage,
		SentAt:       entry.SentAt,
		CreatedAt:    entry.CreatedAt,
		UpdatedAt:    entry.UpdatedAt,
	}
}

// ListDeliveryLogsResponse represents a paginated list of delivery logs.
type ListDeliveryLogsResponse struct {
	Data []DeliveryLogResponse `json:"data"`
}

// MapDeliveryLogsToListResponse converts domain delivery logs to a list API response.
func MapDeliveryLogsToListResponse(entries []*deliveryDomain.DeliveryLog) ListDeliveryLogsResponse {
	data := make([]DeliveryLogResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, MapDeliveryLogToResponse(entry))
	}
	return ListDeliveryLogsResponse{Data: data}
}
