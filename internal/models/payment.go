package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the state of one payment attempt.
// Matches PostgreSQL ENUM: payment_status
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Payment is one attempt to pay for a booking. Rows are never deleted;
// failed attempts stay behind as the audit trail. At most one PAID payment
// may exist per booking.
type Payment struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	BookingID        uuid.UUID     `json:"booking_id" db:"booking_id"`
	GatewayReference string        `json:"gateway_reference" db:"gateway_reference"`
	Amount           int64         `json:"amount" db:"amount"`
	Status           PaymentStatus `json:"status" db:"status"`
	FailureReason    *string       `json:"failure_reason,omitempty" db:"failure_reason"`
	PayerEmail       string        `json:"payer_email" db:"payer_email"`
	PaidAt           *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// InitializePaymentRequest starts a payment for a booking. Amount is in
// minor units and must equal the booking total.
type InitializePaymentRequest struct {
	BookingReference string `json:"booking_reference" binding:"required"`
	Amount           int64  `json:"amount" binding:"required"`
	PayerEmail       string `json:"payer_email" binding:"required,email"`
}

// Validate checks fields beyond binding tags.
func (r *InitializePaymentRequest) Validate() error {
	if r.Amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}
	return nil
}

// InitializePaymentResponse returns the gateway handoff details.
type InitializePaymentResponse struct {
	GatewayReference string `json:"gatewayReference"`
	AuthorizationURL string `json:"authorizationUrl"`
	Amount           int64  `json:"amount"`
}

// ReconcileOutcome is the result of pushing one gateway report through the
// reconciliation chokepoint.
type ReconcileOutcome string

const (
	// OutcomeConfirmed: payment marked PAID and booking confirmed.
	OutcomeConfirmed ReconcileOutcome = "confirmed"
	// OutcomeDuplicate: payment was already PAID; nothing mutated.
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	// OutcomeFailed: payment marked FAILED, booking cancelled, seats released.
	OutcomeFailed ReconcileOutcome = "failed"
	// OutcomeAmountMismatch: reported amount differed; payment FAILED,
	// booking left unconfirmed.
	OutcomeAmountMismatch ReconcileOutcome = "amount_mismatch"
	// OutcomeManualReview: money moved but the booking could not take the
	// confirmation cleanly; an operator must resolve it.
	OutcomeManualReview ReconcileOutcome = "manual_review"
	// OutcomePending: the gateway has not settled the transaction yet;
	// nothing was mutated.
	OutcomePending ReconcileOutcome = "pending"
)

// ReconcileResult carries the outcome plus the states it left behind.
type ReconcileResult struct {
	Outcome          ReconcileOutcome `json:"outcome"`
	GatewayReference string           `json:"gatewayReference"`
	PaymentStatus    PaymentStatus    `json:"paymentStatus"`
	BookingStatus    BookingStatus    `json:"bookingStatus"`
	BookingReference string           `json:"bookingReference"`
}
