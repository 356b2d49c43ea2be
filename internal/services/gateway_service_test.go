package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/models"
)

func newTestGateway(baseURL string) *GatewayService {
	return NewGatewayService(config.PaymentConfig{
		BaseURL:        baseURL,
		SecretKey:      "sk_test_secret",
		WebhookSecret:  "whsec_test",
		RequestTimeout: 2 * time.Second,
	}, testLogger())
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	gateway := newTestGateway("http://gateway.invalid")
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC"}}`)

	assert.True(t, gateway.VerifyWebhookSignature(body, signBody("whsec_test", body)))
}

func TestVerifyWebhookSignature_WrongSecret(t *testing.T) {
	gateway := newTestGateway("http://gateway.invalid")
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC"}}`)

	assert.False(t, gateway.VerifyWebhookSignature(body, signBody("whsec_other", body)))
}

func TestVerifyWebhookSignature_TamperedBody(t *testing.T) {
	gateway := newTestGateway("http://gateway.invalid")
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC","amount":5000}}`)
	signature := signBody("whsec_test", body)

	tampered := []byte(`{"event":"charge.success","data":{"reference":"PAY-ABC","amount":1}}`)
	assert.False(t, gateway.VerifyWebhookSignature(tampered, signature))
}

func TestVerifyWebhookSignature_MissingSignature(t *testing.T) {
	gateway := newTestGateway("http://gateway.invalid")
	assert.False(t, gateway.VerifyWebhookSignature([]byte("{}"), ""))
}

func TestVerifyWebhookSignature_NoSecretConfigured(t *testing.T) {
	gateway := NewGatewayService(config.PaymentConfig{SecretKey: "sk"}, testLogger())
	body := []byte("{}")
	assert.False(t, gateway.VerifyWebhookSignature(body, signBody("", body)))
}

func TestParseWebhook(t *testing.T) {
	gateway := newTestGateway("http://gateway.invalid")

	event, err := gateway.ParseWebhook([]byte(`{
		"event": "charge.success",
		"data": {
			"reference": "PAY-ABC123",
			"amount": 250000,
			"customer": {"email": "rider@example.com"}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "charge.success", event.Event)
	assert.Equal(t, "PAY-ABC123", event.Data.Reference)
	assert.Equal(t, int64(250000), event.Data.Amount)
	assert.Equal(t, "rider@example.com", event.Data.Customer.Email)
}

func TestParseWebhook_MissingReference(t *testing.T) {
	gateway := newTestGateway("http://gateway.invalid")

	_, err := gateway.ParseWebhook([]byte(`{"event":"charge.success","data":{}}`))
	assert.Error(t, err)
}

func TestParseWebhook_InvalidJSON(t *testing.T) {
	gateway := newTestGateway("http://gateway.invalid")

	_, err := gateway.ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestInitialize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.example.com/abc",
				"access_code": "abc",
				"reference": "PAY-TEST1"
			}
		}`))
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	result, err := gateway.Initialize("PAY-TEST1", 250000, "rider@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/abc", result.AuthorizationURL)
	assert.Equal(t, "PAY-TEST1", result.Reference)
}

func TestInitialize_GatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": false, "message": "Invalid amount"}`))
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	_, err := gateway.Initialize("PAY-TEST2", 0, "rider@example.com", nil)
	require.Error(t, err)

	var upstream *models.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.False(t, upstream.Timeout)
}

func TestInitialize_NotConfigured(t *testing.T) {
	gateway := NewGatewayService(config.PaymentConfig{}, testLogger())
	_, err := gateway.Initialize("PAY-TEST3", 1000, "rider@example.com", nil)
	assert.Error(t, err)
}

func TestVerify_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/PAY-TEST4", r.URL.Path)
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"reference": "PAY-TEST4",
				"amount": 250000,
				"gateway_response": "Successful"
			}
		}`))
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	result, err := gateway.Verify("PAY-TEST4")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, int64(250000), result.Amount)
}

func TestVerify_UnknownReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	_, err := gateway.Verify("PAY-MISSING")
	assert.ErrorIs(t, err, models.ErrUnknownReference)
}

func TestVerify_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	gateway := NewGatewayService(config.PaymentConfig{
		BaseURL:        server.URL,
		SecretKey:      "sk_test_secret",
		RequestTimeout: 50 * time.Millisecond,
	}, testLogger())

	_, err := gateway.Verify("PAY-SLOW")
	require.Error(t, err)

	var upstream *models.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.True(t, upstream.Timeout)
}
