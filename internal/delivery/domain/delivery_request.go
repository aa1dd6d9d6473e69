// Package domain defines the core delivery pipeline entities and types.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"

	validation "github.com/jellydator/validation"

	"github.com/allisson/mailpipe/internal/errors"
	customValidation "github.com/allisson/mailpipe/internal/validation"
)

// DeliveryRequest is one unit of work taken from the queue. Only RetryCount
// changes over its lifetime, on each re-enqueue.
type DeliveryRequest struct {
	RequestID   string
	UserID      string
	Recipient   string
	TemplateKey string
	Variables   map[string]string
	Priority    int
	RetryCount  int
	Metadata    map[string]any
}

// WithNextRetry returns a copy of the request with RetryCount incremented.
func (r *DeliveryRequest) WithNextRetry() *DeliveryRequest {
	next := *r
	next.RetryCount = r.RetryCount + 1
	return &next
}

// Attempt returns the 1-based attempt number of the request.
func (r *DeliveryRequest) Attempt() int {
	return r.RetryCount + 1
}

// QueueMessage is the JSON wire form of a DeliveryRequest. Both the
// template_key/template_code and variables/required_variables spellings
// are accepted on decode; encode always writes template_key and variables.
type QueueMessage struct {
	RequestID         string         `json:"request_id,omitempty"`
	NotificationID    string         `json:"notification_id,omitempty"`
	UserID            string         `json:"user_id,omitempty"`
	RecipientEmail    string         `json:"recipient_email"`
	TemplateKey       string         `json:"template_key,omitempty"`
	TemplateCode      string         `json:"template_code,omitempty"`
	Variables         map[string]any `json:"variables,omitempty"`
	RequiredVariables map[string]any `json:"required_variables,omitempty"`
	Priority          *int           `json:"priority,omitempty"`
	RetryCount        int            `json:"retry_count,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// DecodeQueueMessage parses a raw queue payload.
func DecodeQueueMessage(payload []byte) (*QueueMessage, error) {
	var msg QueueMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, errors.Wrap(ErrUndecodableMessage, err.Error())
	}
	return &msg, nil
}

// Validate checks the fields required to attempt a delivery.
func (m *QueueMessage) Validate() error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.RecipientEmail,
			validation.Required,
			customValidation.NotBlank,
			customValidation.Email,
		),
		validation.Field(&m.Priority, validation.Min(1)),
		validation.Field(&m.RetryCount, validation.Min(0)),
	)
	if err != nil {
		return errors.Wrap(ErrInvalidDeliveryRequest, err.Error())
	}

	key := m.templateKey()
	if err := validation.Validate(key, validation.Required, customValidation.TemplateKey); err != nil {
		return errors.Wrap(ErrInvalidDeliveryRequest, "template_key: "+err.Error())
	}
	return nil
}

// ToDeliveryRequest converts the wire message into a DeliveryRequest. The
// request id falls back to notification_id; an empty result is left for the
// caller to fill in.
func (m *QueueMessage) ToDeliveryRequest() *DeliveryRequest {
	requestID := m.RequestID
	if requestID == "" {
		requestID = m.NotificationID
	}

	vars := m.Variables
	if len(vars) == 0 {
		vars = m.RequiredVariables
	}

	priority := 0
	if m.Priority != nil {
		priority = *m.Priority
	}

	return &DeliveryRequest{
		RequestID:   requestID,
		UserID:      m.UserID,
		Recipient:   m.RecipientEmail,
		TemplateKey: m.templateKey(),
		Variables:   StringifyVariables(vars),
		Priority:    priority,
		RetryCount:  m.RetryCount,
		Metadata:    m.Metadata,
	}
}

func (m *QueueMessage) templateKey() string {
	if m.TemplateKey != "" {
		return m.TemplateKey
	}
	return m.TemplateCode
}

// NewQueueMessage builds the wire form of a request.
func NewQueueMessage(r *DeliveryRequest) *QueueMessage {
	vars := make(map[string]any, len(r.Variables))
	for k, v := range r.Variables {
		vars[k] = v
	}

	msg := &QueueMessage{
		RequestID:      r.RequestID,
		UserID:         r.UserID,
		RecipientEmail: r.Recipient,
		TemplateKey:    r.TemplateKey,
		Variables:      vars,
		RetryCount:     r.RetryCount,
		Metadata:       r.Metadata,
	}
	if r.Priority > 0 {
		priority := r.Priority
		msg.Priority = &priority
	}
	return msg
}

// EncodeDeliveryRequest serializes a request for the queue topic.
func EncodeDeliveryRequest(r *DeliveryRequest) ([]byte, error) {
	payload, err := json.Marshal(NewQueueMessage(r))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode delivery request")
	}
	return payload, nil
}

// StringifyVariables converts decoded JSON values to their string form.
// Nulls are dropped so the matching placeholders render empty.
func StringifyVariables(vars map[string]any) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case json.Number:
			out[k] = val.String()
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(encoded)
		}
	}
	return out
}
