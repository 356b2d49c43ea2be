package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
)

// SeatLedgerService is the authoritative source of which seat labels exist
// for a trip and which are currently free. Occupancy is always derived
// from booking rows at read time; the ledger never keeps a counter that
// could drift from them.
type SeatLedgerService struct {
	tripRepo    *database.TripRepository
	bookingRepo *database.BookingRepository
	layout      string
	logger      *logrus.Logger
}

// NewSeatLedgerService creates a new SeatLedgerService.
func NewSeatLedgerService(
	tripRepo *database.TripRepository,
	bookingRepo *database.BookingRepository,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *SeatLedgerService {
	return &SeatLedgerService{
		tripRepo:    tripRepo,
		bookingRepo: bookingRepo,
		layout:      cfg.SeatLayout,
		logger:      logger,
	}
}

// GenerateSeatLabels produces the deterministic label set for a capacity
// under the configured layout.
//
// front_plus_row: one front seat A1, then B1..B(n-1).
// grid: four seats per lettered row, A1..A4, B1..B4, ...
func (s *SeatLedgerService) GenerateSeatLabels(capacity int) []string {
	labels := make([]string, 0, capacity)
	switch s.layout {
	case "grid":
		for i := 0; i < capacity; i++ {
			row := rune('A' + i/4)
			labels = append(labels, fmt.Sprintf("%c%d", row, i%4+1))
		}
	default: // front_plus_row
		labels = append(labels, "A1")
		for i := 1; i < capacity; i++ {
			labels = append(labels, fmt.Sprintf("B%d", i))
		}
		labels = labels[:capacity]
	}
	return labels
}

// InitializeSeats declares the seat set for a trip. Must be called exactly
// once, at trip creation; a second call fails with
// models.ErrDuplicateInitialization.
func (s *SeatLedgerService) InitializeSeats(tripID uuid.UUID, capacity int) ([]string, error) {
	if capacity < 1 {
		return nil, models.NewValidationError("capacity", "must be at least 1")
	}
	labels := s.GenerateSeatLabels(capacity)
	if err := s.tripRepo.InitializeSeats(tripID, labels); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"trip_id": tripID,
		"seats":   len(labels),
		"layout":  s.layout,
	}).Info("Seat ledger initialized")
	return labels, nil
}

// AvailableSeats returns declared labels minus labels attached to active
// bookings. Advisory only: Reserve re-checks under lock at write time.
func (s *SeatLedgerService) AvailableSeats(tripID uuid.UUID) (*models.SeatAvailability, error) {
	declared, err := s.tripRepo.GetSeatLabels(tripID)
	if err != nil {
		return nil, err
	}
	if len(declared) == 0 {
		// Distinguish an unknown trip from a trip with no ledger.
		if _, err := s.tripRepo.GetByID(tripID); err != nil {
			return nil, err
		}
	}

	booked, err := s.bookingRepo.GetActiveSeatLabels(tripID)
	if err != nil {
		return nil, err
	}

	bookedSet := make(map[string]bool, len(booked))
	for _, label := range booked {
		bookedSet[label] = true
	}
	available := make([]string, 0, len(declared))
	for _, label := range declared {
		if !bookedSet[label] {
			available = append(available, label)
		}
	}

	return &models.SeatAvailability{
		TripID:         tripID,
		TotalSeats:     len(declared),
		BookedSeats:    booked,
		AvailableSeats: available,
		AvailableCount: len(available),
	}, nil
}

// Reserve atomically attaches the given seats to a new booking. The write
// happens in one transaction with the booking insert; see
// BookingRepository.CreateWithSeats for the serialization guarantee.
func (s *SeatLedgerService) Reserve(booking *models.Booking, seats []models.BookingSeat) error {
	return s.bookingRepo.CreateWithSeats(booking, seats)
}

// Release frees the seats of a still-pending booking by cancelling it.
// A CONFIRMED booking owns its seats; freeing those goes through
// BookingService.Cancel so the refund tiers apply. Idempotent: reports
// false without touching anything when the booking already left PENDING.
func (s *SeatLedgerService) Release(bookingID uuid.UUID, reason string) (bool, error) {
	applied, err := s.bookingRepo.TransitionStatus(bookingID, models.BookingStatusPending, models.BookingStatusCancelled, &reason)
	if err != nil {
		return false, err
	}
	if applied {
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"reason":     reason,
		}).Info("Seats released")
	}
	return applied, nil
}
