package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/services"
)

const testWebhookSecret = "whsec_test"

func setupPaymentHandlerTest(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, func()) {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	postgresDB := &database.PostgresDB{DB: sqlxDB}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bookingCfg := config.BookingConfig{
		HoldTimeout:        15 * time.Minute,
		MaxSeatsPerBooking: 6,
		SeatLayout:         "front_plus_row",
		ReferencePrefix:    "TRP",
	}
	paymentCfg := config.PaymentConfig{
		BaseURL:        "http://gateway.invalid",
		SecretKey:      "sk_test",
		WebhookSecret:  testWebhookSecret,
		RequestTimeout: 2 * time.Second,
	}

	tripRepo := database.NewTripRepository(postgresDB)
	bookingRepo := database.NewBookingRepository(postgresDB)
	paymentRepo := database.NewPaymentRepository(postgresDB)
	auditRepo := database.NewPaymentAuditRepository(postgresDB, logger)

	ledger := services.NewSeatLedgerService(tripRepo, bookingRepo, bookingCfg, logger)
	bookingService := services.NewBookingService(bookingRepo, tripRepo, paymentRepo, ledger, bookingCfg, logger)
	gateway := services.NewGatewayService(paymentCfg, logger)
	paymentService := services.NewPaymentService(paymentRepo, bookingRepo, auditRepo, bookingService, gateway, logger)
	rateLimits := services.NewRateLimitService(postgresDB, config.RateLimitConfig{MaxAttempts: 10, Window: 10 * time.Minute})

	handler := NewPaymentHandler(paymentService, gateway, rateLimits, logger)

	router := gin.New()
	router.POST("/api/v1/payments/webhook", handler.Webhook)

	cleanup := func() {
		db.Close()
	}

	return router, mock, cleanup
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Gateway-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_MissingSignature(t *testing.T) {
	router, mock, cleanup := setupPaymentHandlerTest(t)
	defer cleanup()

	// Rejected before any state lookup; only the rejection itself is
	// recorded, with the unparsed body.
	mock.ExpectExec("INSERT INTO payment_audits").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC","amount":1000}}`)
	w := postWebhook(router, body, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_WrongSignature(t *testing.T) {
	router, mock, cleanup := setupPaymentHandlerTest(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO payment_audits").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC","amount":1000}}`)
	w := postWebhook(router, body, "deadbeef")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_TamperedBody(t *testing.T) {
	router, mock, cleanup := setupPaymentHandlerTest(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO payment_audits").
		WillReturnResult(sqlmock.NewResult(1, 1))

	signed := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC","amount":1000}}`)
	tampered := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC","amount":1}}`)
	w := postWebhook(router, tampered, signWebhook(signed))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_UnparseablePayload(t *testing.T) {
	router, mock, cleanup := setupPaymentHandlerTest(t)
	defer cleanup()

	body := []byte(`not json at all`)
	w := postWebhook(router, body, signWebhook(body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_UnhandledEventAcknowledged(t *testing.T) {
	router, mock, cleanup := setupPaymentHandlerTest(t)
	defer cleanup()

	// The delivery itself is audited even when the event type is ignored.
	mock.ExpectExec("INSERT INTO payment_audits").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"event":"transfer.success","data":{"reference":"PAY-ABC","amount":1000}}`)
	w := postWebhook(router, body, signWebhook(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"acknowledged":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_UnknownReferenceStillAcknowledged(t *testing.T) {
	router, mock, cleanup := setupPaymentHandlerTest(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO payment_audits").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// No payment was ever initialized under this reference.
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-FORGED","amount":1000}}`)
	w := postWebhook(router, body, signWebhook(body))

	// Authenticated, so answer 200; nothing was created for the reference.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
