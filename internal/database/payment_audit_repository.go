package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/models"
)

// PaymentAuditRepository writes the immutable payment event log.
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new PaymentAuditRepository.
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db, logger: logger}
}

// Log inserts one audit entry. Payment events must not go unrecorded, so a
// failure here is logged at error level even when the caller ignores it.
func (r *PaymentAuditRepository) Log(audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO payment_audits (
			id, booking_id, payment_id, gateway_reference,
			event_type, event_source,
			expected_amount, received_amount, amounts_match,
			gateway_status, raw_body, payload, error_message,
			is_duplicate, ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`,
		audit.ID, audit.BookingID, audit.PaymentID, audit.GatewayReference,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch,
		audit.GatewayStatus, audit.RawBody, audit.Payload, audit.ErrorMessage,
		audit.IsDuplicate, audit.IPAddress, audit.UserAgent, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"reference":  audit.GatewayReference,
		}).WithError(err).Error("Failed to write payment audit entry")
		return fmt.Errorf("failed to insert payment audit: %w", err)
	}
	return nil
}

// ListByReference returns the audit trail for one gateway reference,
// oldest first.
func (r *PaymentAuditRepository) ListByReference(reference string) ([]models.PaymentAudit, error) {
	var audits []models.PaymentAudit
	err := r.db.Select(&audits, `
		SELECT id, booking_id, payment_id, gateway_reference,
		       event_type, event_source,
		       expected_amount, received_amount, amounts_match,
		       gateway_status, raw_body, payload, error_message,
		       is_duplicate, ip_address, user_agent, created_at
		FROM payment_audits
		WHERE gateway_reference = $1
		ORDER BY created_at`, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}
