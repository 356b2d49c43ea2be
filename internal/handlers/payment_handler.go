package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// Signature header carried by gateway webhooks.
const webhookSignatureHeader = "X-Gateway-Signature"

// PaymentHandler handles payment initialization, the verify poll, and the
// gateway webhook.
type PaymentHandler struct {
	paymentService *services.PaymentService
	gateway        *services.GatewayService
	rateLimits     *services.RateLimitService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(
	paymentService *services.PaymentService,
	gateway *services.GatewayService,
	rateLimits *services.RateLimitService,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		gateway:        gateway,
		rateLimits:     rateLimits,
		logger:         logger,
	}
}

func clientMeta(c *gin.Context) services.ClientMeta {
	return services.ClientMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// InitializePayment starts a payment attempt for a pending booking.
// POST /api/v1/payments/initialize
func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	if err := h.rateLimits.Check(c.ClientIP(), services.ActionPaymentInit); err != nil {
		respondError(c, err)
		return
	}

	var req models.InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.rateLimits.Record(c.ClientIP(), services.ActionPaymentInit); err != nil {
		h.logger.WithError(err).Warn("Failed to record payment attempt")
	}

	resp, err := h.paymentService.InitializePayment(&req, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyPayment is the client poll path: fetch the gateway's account of
// the transaction and reconcile it.
// GET /api/v1/payments/verify/:reference
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	result, err := h.paymentService.VerifyAndReconcile(c.Param("reference"), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Webhook receives gateway callbacks. The HMAC signature over the raw
// body is checked before anything else; unauthenticated requests learn
// nothing about our state. Authenticated deliveries are always answered
// 200 so the gateway stops retrying; reconciliation outcomes, including
// ones needing manual review, are our problem, not the gateway's.
// POST /api/v1/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(webhookSignatureHeader)
	if !h.gateway.VerifyWebhookSignature(rawBody, signature) {
		h.logger.WithField("ip", c.ClientIP()).Warn("Webhook rejected: bad signature")
		h.paymentService.FlagRejectedWebhook(rawBody, clientMeta(c))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := h.gateway.ParseWebhook(rawBody)
	if err != nil {
		h.logger.WithError(err).Warn("Webhook payload unparseable")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.paymentService.ProcessWebhook(event, rawBody, clientMeta(c))
	if err != nil {
		h.logger.WithError(err).WithField("reference", event.Data.Reference).Error("Webhook reconciliation failed")
		// Acknowledge anyway: the audit row has the payload and the sweep
		// or a verify poll will settle the booking.
		c.JSON(http.StatusOK, gin.H{"acknowledged": true})
		return
	}
	if result == nil {
		c.JSON(http.StatusOK, gin.H{"acknowledged": true, "handled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "outcome": result.Outcome})
}

// ListPaymentAudits returns the recorded gateway events for a reference.
// GET /api/v1/admin/payments/:reference/audits
func (h *PaymentHandler) ListPaymentAudits(c *gin.Context) {
	audits, err := h.paymentService.AuditTrail(c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reference": c.Param("reference"), "audits": audits, "count": len(audits)})
}
