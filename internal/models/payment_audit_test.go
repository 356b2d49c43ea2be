package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentAuditSetAmounts(t *testing.T) {
	audit := NewPaymentAudit(PaymentEventWebhookReceived, PaymentSourceWebhook)

	match := audit.SetAmounts(250000, 250000)
	assert.True(t, match)
	require.NotNil(t, audit.AmountsMatch)
	assert.True(t, *audit.AmountsMatch)

	mismatch := audit.SetAmounts(250000, 100)
	assert.False(t, mismatch)
	assert.False(t, *audit.AmountsMatch)
	assert.Equal(t, int64(250000), *audit.ExpectedAmount)
	assert.Equal(t, int64(100), *audit.ReceivedAmount)
}

func TestPaymentAuditBuilders(t *testing.T) {
	bookingID, paymentID := uuid.New(), uuid.New()

	audit := NewPaymentAudit(PaymentEventSuccess, PaymentSourceVerify).
		SetBooking(bookingID).
		SetPayment(paymentID).
		SetReference("PAY-ABC123").
		SetGatewayStatus("success").
		MarkDuplicate().
		SetClientMeta("192.168.1.1", "Chrome/120 (Linux)")

	assert.Equal(t, bookingID, *audit.BookingID)
	assert.Equal(t, paymentID, *audit.PaymentID)
	assert.Equal(t, "PAY-ABC123", *audit.GatewayReference)
	assert.Equal(t, "success", *audit.GatewayStatus)
	assert.True(t, audit.IsDuplicate)
	assert.Equal(t, "192.168.1.1", *audit.IPAddress)
	assert.NotEqual(t, uuid.Nil, audit.ID)
	assert.False(t, audit.CreatedAt.IsZero())
}

func TestPaymentAuditSetClientMeta_EmptyValuesSkipped(t *testing.T) {
	audit := NewPaymentAudit(PaymentEventInitiated, PaymentSourceBackend).
		SetClientMeta("", "")

	assert.Nil(t, audit.IPAddress)
	assert.Nil(t, audit.UserAgent)
}

func TestJSONBRoundTrip(t *testing.T) {
	original := JSONB{"booking_reference": "TRP-20260910-AAAA", "attempt": float64(2)}

	value, err := original.Value()
	require.NoError(t, err)

	var scanned JSONB
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)
}

func TestJSONBScanNil(t *testing.T) {
	var scanned JSONB
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}
