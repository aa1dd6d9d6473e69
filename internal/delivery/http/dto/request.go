// Package dto provides data transfer objects for delivery HTTP requests and responses.
package dto

import (
	"strings"

	validation "github.com/jellydator/validation"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	customValidation "github.com/allisson/mailpipe/internal/validation"
)

// UpdateCircuitBreakerRequest forces the circuit breaker into State.
type UpdateCircuitBreakerRequest struct {
	State string `json:"state"`
}

// Validate checks if the update circuit breaker request is valid.
func (r *UpdateCircuitBreakerRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.State,
			validation.Required,
			customValidation.NotBlank,
			validation.By(func(value interface{}) error {
				state, _ := value.(string)
				if _, err := deliveryDomain.ParseCircuitState(state); err != nil {
					return validation.NewError(
						"validation_circuit_state",
						"must be one of CLOSED, OPEN, HALF_OPEN",
					)
				}
				return nil
			}),
		),
	)
}

// CircuitState returns the parsed state. Call Validate first.
func (r *UpdateCircuitBreakerRequest) CircuitState() deliveryDomain.CircuitState {
	state, _ := deliveryDomain.ParseCircuitState(strings.TrimSpace(r.State))
	return state
}

// ListDeliveryLogsQuery holds the optional filters of a delivery log listing.
type ListDeliveryLogsQuery struct {
	RequestID string `form:"request_id"`
	UserID    string `form:"user_id"`
	Status    string `form:"status"`
}

// Validate checks if the listing filters are valid.
func (q *ListDeliveryLogsQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.RequestID, validation.Length(0, 255)),
		validation.Field(&q.UserID, validation.Length(0, 255)),
		validation.Field(&q.Status, validation.In(
			string(deliveryDomain.DeliveryStatusPending),
			string(deliveryDomain.DeliveryStatusDelivered),
			string(deliveryDomain.DeliveryStatusFailed),
		)),
	)
}

// Filter converts the query to a domain filter.
func (q *ListDeliveryLogsQuery) Filter() deliveryDomain.DeliveryLogFilter {
	return deliveryDomain.DeliveryLogFilter{
		RequestID: q.RequestID,
		UserID:    q.UserID,
		Status:    deliveryDomain.DeliveryStatus(q.Status),
	}
}
