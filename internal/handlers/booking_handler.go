package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// BookingHandler handles the public booking endpoints.
type BookingHandler struct {
	bookingService *services.BookingService
	rateLimits     *services.RateLimitService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(
	bookingService *services.BookingService,
	rateLimits *services.RateLimitService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		rateLimits:     rateLimits,
		logger:         logger,
	}
}

// CreateBooking reserves seats and creates a PENDING booking.
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	if err := h.rateLimits.Check(c.ClientIP(), services.ActionBookingCreate); err != nil {
		respondError(c, err)
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.rateLimits.Record(c.ClientIP(), services.ActionBookingCreate); err != nil {
		h.logger.WithError(err).Warn("Failed to record booking attempt")
	}

	booking, err := h.bookingService.Create(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking.ToResponse())
}

// GetBooking looks a booking up by its reference.
// GET /api/v1/bookings/:reference
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetByReference(c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking.ToResponse())
}

// CancelBooking cancels a booking by reference. Confirmed bookings get the
// refund-tier treatment; the refund owed comes back in the response.
// POST /api/v1/bookings/:reference/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	booking, err := h.bookingService.GetByReference(c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "customer_cancelled"
	}

	refund, err := h.bookingService.Cancel(booking.ID, reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookingReference": booking.BookingReference,
		"status":           models.BookingStatusCancelled,
		"refundAmount":     refund,
	})
}
