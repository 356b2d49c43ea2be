package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event being audited.
type PaymentEventType string

const (
	PaymentEventInitiated              PaymentEventType = "payment_initiated"
	PaymentEventWebhookReceived        PaymentEventType = "webhook_received"
	PaymentEventWebhookRejected        PaymentEventType = "webhook_rejected"
	PaymentEventVerifyRequested        PaymentEventType = "verify_requested"
	PaymentEventSuccess                PaymentEventType = "payment_success"
	PaymentEventFailed                 PaymentEventType = "payment_failed"
	PaymentEventDuplicate              PaymentEventType = "duplicate_delivery"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventManualReviewRequired   PaymentEventType = "manual_review_required"
	PaymentEventGatewayTimeout         PaymentEventType = "gateway_timeout"
)

// PaymentEventSource identifies where the event originated.
type PaymentEventSource string

const (
	PaymentSourceBackend PaymentEventSource = "backend"
	PaymentSourceWebhook PaymentEventSource = "webhook"
	PaymentSourceVerify  PaymentEventSource = "verify_poll"
	PaymentSourceSweep   PaymentEventSource = "sweep"
)

// JSONB stores arbitrary JSON payloads in a jsonb column.
type JSONB map[string]interface{}

// Value implements driver.Valuer.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("JSONB: type assertion to []byte failed")
	}
	return json.Unmarshal(b, j)
}

// PaymentAudit is an immutable log row for a payment event. Every
// reconciliation decision writes one; rows are never updated or deleted.
type PaymentAudit struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	BookingID        *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	PaymentID        *uuid.UUID `json:"payment_id,omitempty" db:"payment_id"`
	GatewayReference *string    `json:"gateway_reference,omitempty" db:"gateway_reference"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount tracking in minor units. AmountsMatch is the tamper check.
	ExpectedAmount *int64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *int64 `json:"received_amount,omitempty" db:"received_amount"`
	AmountsMatch   *bool  `json:"amounts_match,omitempty" db:"amounts_match"`

	GatewayStatus *string `json:"gateway_status,omitempty" db:"gateway_status"`
	RawBody       *string `json:"raw_body,omitempty" db:"raw_body"`
	Payload       JSONB   `json:"payload,omitempty" db:"payload"`
	ErrorMessage  *string `json:"error_message,omitempty" db:"error_message"`

	IsDuplicate bool    `json:"is_duplicate" db:"is_duplicate"`
	IPAddress   *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates an audit row with the required fields set.
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking attaches the booking ID.
func (pa *PaymentAudit) SetBooking(id uuid.UUID) *PaymentAudit {
	pa.BookingID = &id
	return pa
}

// SetPayment attaches the payment ID.
func (pa *PaymentAudit) SetPayment(id uuid.UUID) *PaymentAudit {
	pa.PaymentID = &id
	return pa
}

// SetReference attaches the gateway reference.
func (pa *PaymentAudit) SetReference(ref string) *PaymentAudit {
	pa.GatewayReference = &ref
	return pa
}

// SetAmounts records expected vs received and returns whether they match.
func (pa *PaymentAudit) SetAmounts(expected, received int64) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	match := expected == received
	pa.AmountsMatch = &match
	return match
}

// SetGatewayStatus records the status string the gateway reported.
func (pa *PaymentAudit) SetGatewayStatus(status string) *PaymentAudit {
	pa.GatewayStatus = &status
	return pa
}

// SetRawBody stores the raw request body before parsing.
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetError records an error message.
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// MarkDuplicate flags a repeated delivery of the same gateway report.
func (pa *PaymentAudit) MarkDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// SetClientMeta records where the request came from.
func (pa *PaymentAudit) SetClientMeta(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}
