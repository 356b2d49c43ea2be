package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripline/booking-backend/internal/models"
)

// PaymentRepository handles payment database operations. Payment rows are
// append-and-update only; nothing here deletes.
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a PENDING payment keyed by its gateway reference.
func (r *PaymentRepository) Create(payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	payment.Status = models.PaymentStatusPending

	_, err := r.db.Exec(`
		INSERT INTO payments (id, booking_id, gateway_reference, amount, status,
			payer_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		payment.ID, payment.BookingID, payment.GatewayReference, payment.Amount,
		payment.Status, payment.PayerEmail, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetByReference retrieves a payment by its gateway reference. Returns
// models.ErrUnknownReference when no payment was initialized under it.
func (r *PaymentRepository) GetByReference(reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Get(&payment, `
		SELECT id, booking_id, gateway_reference, amount, status,
		       failure_reason, payer_email, paid_at, created_at, updated_at
		FROM payments
		WHERE gateway_reference = $1`, reference)
	if err == sql.ErrNoRows {
		return nil, models.ErrUnknownReference
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// MarkPaid transitions a PENDING payment to PAID with its payment date.
// The conditional write makes concurrent duplicate deliveries settle on a
// single winner; callers seeing false re-read the row.
func (r *PaymentRepository) MarkPaid(paymentID uuid.UUID, paidAt time.Time) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE payments
		SET status = 'PAID', paid_at = $1, failure_reason = NULL, updated_at = NOW()
		WHERE id = $2 AND status = 'PENDING'`,
		paidAt, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// MarkFailed transitions a PENDING payment to FAILED with a reason.
func (r *PaymentRepository) MarkFailed(paymentID uuid.UUID, reason string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE payments
		SET status = 'FAILED', failure_reason = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'PENDING'`,
		reason, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// GetStalePendingReferences lists gateway references of payments still
// PENDING past the cutoff, oldest first. Input for the reconciliation
// sweep.
func (r *PaymentRepository) GetStalePendingReferences(cutoff time.Time) ([]string, error) {
	var references []string
	err := r.db.Select(&references, `
		SELECT gateway_reference FROM payments
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending payments: %w", err)
	}
	return references, nil
}

// GetPaidByBookingID returns the PAID payment owning a booking's
// confirmation, or nil when none exists.
func (r *PaymentRepository) GetPaidByBookingID(bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Get(&payment, `
		SELECT id, booking_id, gateway_reference, amount, status,
		       failure_reason, payer_email, paid_at, created_at, updated_at
		FROM payments
		WHERE booking_id = $1 AND status = 'PAID'`, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paid payment: %w", err)
	}
	return &payment, nil
}
