package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// TripHandler handles trip administration and the public availability read.
type TripHandler struct {
	tripRepo *database.TripRepository
	ledger   *services.SeatLedgerService
	logger   *logrus.Logger
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripRepo *database.TripRepository, ledger *services.SeatLedgerService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{tripRepo: tripRepo, ledger: ledger, logger: logger}
}

// CreateTrip schedules a trip, then declares its seat ledger through the
// one-shot initialization. POST /api/v1/admin/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	routeID, _ := uuid.Parse(req.RouteID)
	trip := &models.Trip{
		RouteID:       routeID,
		DepartureAt:   req.DepartureAt,
		ArrivalAt:     req.ArrivalAt,
		MaxPassengers: req.MaxPassengers,
		Status:        models.TripStatusActive,
	}

	if err := h.tripRepo.Create(trip); err != nil {
		h.logger.WithError(err).Error("Failed to create trip")
		respondError(c, err)
		return
	}

	seatLabels, err := h.ledger.InitializeSeats(trip.ID, req.MaxPassengers)
	if err != nil {
		// A trip without a seat ledger accepts no bookings; remove the
		// half-created row rather than leave it dangling.
		if derr := h.tripRepo.Delete(trip.ID); derr != nil {
			h.logger.WithError(derr).WithField("trip_id", trip.ID).Error("Failed to clean up trip after seat initialization failure")
		}
		respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"seats":   len(seatLabels),
	}).Info("Trip created")

	c.JSON(http.StatusCreated, gin.H{"trip": trip, "seats": seatLabels})
}

// GetTrip returns one trip. GET /api/v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip id"})
		return
	}

	trip, err := h.tripRepo.GetByID(tripID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// GetSeatAvailability answers which seats are free right now. The answer
// is advisory: the reservation path re-checks under lock.
// GET /api/v1/trips/:id/seats
func (h *TripHandler) GetSeatAvailability(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip id"})
		return
	}

	availability, err := h.ledger.AvailableSeats(tripID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

// UpdateTrip applies a schedule change. Only the fields present in the
// request body are touched. PATCH /api/v1/admin/trips/:id
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip id"})
		return
	}

	var req models.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	if err := h.tripRepo.Update(tripID, &req); err != nil {
		respondError(c, err)
		return
	}

	trip, err := h.tripRepo.GetByID(tripID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// UpdateTripStatus changes the trip lifecycle status.
// PATCH /api/v1/admin/trips/:id/status
func (h *TripHandler) UpdateTripStatus(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip id"})
		return
	}

	var req models.UpdateTripStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	if err := h.tripRepo.UpdateStatus(tripID, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "status": req.Status})
}

// DeleteTrip removes a trip with zero bookings; a trip that has ever been
// booked is soft-cancelled instead so booking history survives.
// DELETE /api/v1/admin/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip id"})
		return
	}

	count, err := h.tripRepo.CountBookings(tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	if count > 0 {
		if err := h.tripRepo.UpdateStatus(tripID, models.TripStatusCancelled); err != nil {
			respondError(c, err)
			return
		}
		h.logger.WithField("trip_id", tripID).Info("Trip with bookings soft-cancelled")
		c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "status": models.TripStatusCancelled, "deleted": false})
		return
	}

	if err := h.tripRepo.Delete(tripID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "deleted": true})
}
