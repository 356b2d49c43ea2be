package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// respondError maps domain errors to HTTP responses in one place so every
// handler reports the same shapes. Failure bodies carry a machine-readable
// reason where the UI needs to react (seat conflicts name the seats taken
// so the form can re-query availability).
func respondError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var seatConflict *models.SeatConflictError
	var invalidSeat *models.InvalidSeatError
	var transition *models.StateTransitionError
	var rateLimit *services.RateLimitError
	var upstream *models.UpstreamError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})

	case errors.As(err, &seatConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Some seats are no longer available",
			"reason":     "seats_taken",
			"takenSeats": seatConflict.TakenSeats,
		})

	case errors.As(err, &invalidSeat):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":        "Some seats do not exist on this trip",
			"reason":       "invalid_seats",
			"unknownSeats": invalidSeat.UnknownSeats,
		})

	case errors.Is(err, models.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": "trip_full"})

	case errors.Is(err, models.ErrTripNotBookable), errors.Is(err, models.ErrTripDeparted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": "trip_closed"})

	case errors.Is(err, models.ErrTripNotFound),
		errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrPaymentNotFound),
		errors.Is(err, models.ErrUnknownReference):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrDuplicateInitialization),
		errors.Is(err, models.ErrDuplicateReference),
		errors.Is(err, models.ErrTripHasBookings):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": "amount_mismatch"})

	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": transition.Error()})

	case errors.As(err, &rateLimit):
		c.Header("Retry-After", rateLimit.RetryAfter.UTC().Format(http.TimeFormat))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts, please try again later"})

	case errors.As(err, &upstream):
		if upstream.Timeout {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Payment gateway did not respond, your booking is still held"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway error"})

	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})

	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
