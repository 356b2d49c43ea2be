package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/models"
)

// GatewayService talks to the external payment gateway. All calls carry a
// bounded timeout; a timeout is an unknown outcome and the caller must
// leave the booking PENDING for the expiry sweep.
type GatewayService struct {
	cfg    config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// NewGatewayService creates a new GatewayService.
func NewGatewayService(cfg config.PaymentConfig, logger *logrus.Logger) *GatewayService {
	return &GatewayService{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// IsConfigured reports whether gateway credentials are present.
func (s *GatewayService) IsConfigured() bool {
	return s.cfg.SecretKey != ""
}

// initializeRequest is the outbound transaction-initialize payload.
// Amount is in minor units, as the gateway expects.
type initializeRequest struct {
	Amount      int64             `json:"amount"`
	Email       string            `json:"email"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// InitializeResult is the gateway handoff returned to the caller.
type InitializeResult struct {
	AuthorizationURL string
	Reference        string
}

// Initialize starts a transaction at the gateway for the given reference.
func (s *GatewayService) Initialize(reference string, amount int64, email string, metadata map[string]string) (*InitializeResult, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing secret key")
	}

	payload := initializeRequest{
		Amount:      amount,
		Email:       email,
		Reference:   reference,
		CallbackURL: s.cfg.CallbackURL,
		Metadata:    metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initialize request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.BaseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build initialize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.wrapTransportError("initialize", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read initialize response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{
			Op:  "initialize",
			Err: fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, respBody),
		}
	}

	var parsed initializeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse initialize response: %w", err)
	}
	if !parsed.Status {
		return nil, &models.UpstreamError{
			Op:  "initialize",
			Err: fmt.Errorf("gateway rejected initialization: %s", parsed.Msg),
		}
	}

	s.logger.WithFields(logrus.Fields{
		"reference": reference,
		"amount":    amount,
	}).Info("Payment initialized at gateway")

	return &InitializeResult{
		AuthorizationURL: parsed.Data.AuthorizationURL,
		Reference:        parsed.Data.Reference,
	}, nil
}

type verifyResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		Status         string `json:"status"` // "success", "failed", "abandoned"
		Reference      string `json:"reference"`
		Amount         int64  `json:"amount"`
		GatewayMessage string `json:"gateway_response"`
	} `json:"data"`
}

// VerifyResult is the gateway's independent account of a transaction.
type VerifyResult struct {
	Status    string
	Reference string
	Amount    int64
	Message   string
}

// Verify asks the gateway for the authoritative state of a transaction.
func (s *GatewayService) Verify(reference string) (*VerifyResult, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing secret key")
	}

	req, err := http.NewRequest(http.MethodGet, s.cfg.BaseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.wrapTransportError("verify", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read verify response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrUnknownReference
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{
			Op:  "verify",
			Err: fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, respBody),
		}
	}

	var parsed verifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}
	if !parsed.Status {
		return nil, &models.UpstreamError{
			Op:  "verify",
			Err: fmt.Errorf("gateway rejected verification: %s", parsed.Msg),
		}
	}

	return &VerifyResult{
		Status:    parsed.Data.Status,
		Reference: parsed.Data.Reference,
		Amount:    parsed.Data.Amount,
		Message:   parsed.Data.GatewayMessage,
	}, nil
}

// WebhookEvent is the parsed inbound webhook payload.
type WebhookEvent struct {
	Event string `json:"event"` // "charge.success", "charge.failed", ...
	Data  struct {
		Reference      string            `json:"reference"`
		Amount         int64             `json:"amount"`
		GatewayMessage string            `json:"gateway_response"`
		Metadata       map[string]string `json:"metadata"`
		Customer       struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// VerifyWebhookSignature checks the HMAC-SHA512 of the raw body against
// the signature header, in constant time. Must pass before the body is
// parsed or any state is looked up.
func (s *GatewayService) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if s.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(s.cfg.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook decodes a signature-verified webhook body.
func (s *GatewayService) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if event.Data.Reference == "" {
		return nil, fmt.Errorf("webhook payload missing reference")
	}
	return &event, nil
}

func (s *GatewayService) wrapTransportError(op string, err error) error {
	var netErr net.Error
	timeout := errors.As(err, &netErr) && netErr.Timeout()
	if timeout {
		s.logger.WithError(err).Warnf("Payment gateway %s timed out", op)
	}
	return &models.UpstreamError{Op: op, Timeout: timeout, Err: err}
}
