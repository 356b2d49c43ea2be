package services

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
)

const referenceSuffixChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// BookingService governs the booking lifecycle:
// PENDING -> CONFIRMED -> COMPLETED, with CANCELLED reachable from PENDING
// (payment failure, expiry, user cancel) and from CONFIRMED (explicit
// cancellation before departure, refund-tiered).
type BookingService struct {
	bookingRepo *database.BookingRepository
	tripRepo    *database.TripRepository
	paymentRepo *database.PaymentRepository
	ledger      *SeatLedgerService
	cfg         config.BookingConfig
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	paymentRepo *database.PaymentRepository,
	ledger *SeatLedgerService,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		tripRepo:    tripRepo,
		paymentRepo: paymentRepo,
		ledger:      ledger,
		cfg:         cfg,
		logger:      logger,
	}
}

// Create validates the trip and request, reserves the seats, and persists
// a PENDING booking, all or nothing. On a seat conflict no booking row
// exists and the typed error tells the caller which labels were taken.
func (s *BookingService) Create(req *models.CreateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Passengers) > s.cfg.MaxSeatsPerBooking {
		return nil, models.NewValidationError("passengers",
			fmt.Sprintf("at most %d seats per booking", s.cfg.MaxSeatsPerBooking))
	}

	tripID, _ := uuid.Parse(req.TripID)
	trip, err := s.tripRepo.GetByID(tripID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if trip.Status != models.TripStatusActive {
		return nil, models.ErrTripNotBookable
	}
	if !trip.DepartureAt.After(now) {
		return nil, models.ErrTripDeparted
	}

	reference, err := s.generateReference()
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		BookingReference: reference,
		TripID:           tripID,
		TotalAmount:      req.TotalAmount,
		ContactEmail:     req.ContactEmail,
		ContactPhone:     req.ContactPhone,
	}
	seats := make([]models.BookingSeat, len(req.Passengers))
	for i, p := range req.Passengers {
		seats[i] = models.BookingSeat{
			SeatLabel:     p.SeatLabel,
			PassengerName: p.PassengerName,
		}
	}

	if err := s.ledger.Reserve(booking, seats); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": booking.BookingReference,
		"trip_id":           tripID,
		"seats":             len(seats),
		"total_amount":      booking.TotalAmount,
	}).Info("Booking created")

	return booking, nil
}

// generateReference builds a human-shareable booking reference: prefix,
// compact timestamp, random suffix. Collision-checked against the table.
func (s *BookingService) generateReference() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		suffix := make([]byte, 4)
		for i := range suffix {
			suffix[i] = referenceSuffixChars[rand.Intn(len(referenceSuffixChars))]
		}
		ref := fmt.Sprintf("%s-%s-%s", s.cfg.ReferencePrefix, time.Now().Format("20060102150405"), suffix)

		exists, err := s.bookingRepo.ReferenceExists(ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", models.ErrDuplicateReference
}

// Confirm transitions a PENDING booking to CONFIRMED on behalf of a PAID
// payment. Re-confirming with the same payment is a no-op; a different
// payment is an invariant violation and is reported, never absorbed.
func (s *BookingService) Confirm(bookingID, paymentID uuid.UUID) error {
	applied, err := s.bookingRepo.TransitionStatus(
		bookingID, models.BookingStatusPending, models.BookingStatusConfirmed, nil)
	if err != nil {
		return err
	}
	if applied {
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"payment_id": paymentID,
		}).Info("Booking confirmed")
		return nil
	}

	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return err
	}
	if booking.Status == models.BookingStatusConfirmed {
		owner, err := s.paymentRepo.GetPaidByBookingID(bookingID)
		if err != nil {
			return err
		}
		if owner != nil && owner.ID == paymentID {
			// Same payment re-delivered; already confirmed.
			return nil
		}
		confirmedBy := "unknown"
		if owner != nil {
			confirmedBy = owner.ID.String()
		}
		return &models.InvariantViolationError{
			BookingID:          bookingID.String(),
			ConfirmedPaymentID: confirmedBy,
			AttemptedPaymentID: paymentID.String(),
		}
	}
	return &models.StateTransitionError{
		BookingID: bookingID.String(),
		From:      booking.Status,
		Attempted: "confirm",
	}
}

// Cancel cancels a booking. PENDING bookings cancel unconditionally;
// CONFIRMED bookings go through the refund tiers and cannot be cancelled
// after departure. Returns the refund owed in minor units (0 for PENDING).
func (s *BookingService) Cancel(bookingID uuid.UUID, reason string) (int64, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return 0, err
	}

	switch booking.Status {
	case models.BookingStatusPending:
		applied, err := s.bookingRepo.TransitionStatus(
			bookingID, models.BookingStatusPending, models.BookingStatusCancelled, &reason)
		if err != nil {
			return 0, err
		}
		if !applied {
			// Lost a race with confirmation or expiry; report current state.
			return s.Cancel(bookingID, reason)
		}
		s.logger.WithFields(logrus.Fields{
			"booking_reference": booking.BookingReference,
			"reason":            reason,
		}).Info("Pending booking cancelled")
		return 0, nil

	case models.BookingStatusConfirmed:
		trip, err := s.tripRepo.GetByID(booking.TripID)
		if err != nil {
			return 0, err
		}
		now := time.Now()
		if !trip.DepartureAt.After(now) {
			return 0, &models.StateTransitionError{
				BookingID: bookingID.String(),
				From:      booking.Status,
				Attempted: "cancel after departure",
			}
		}
		refund := RefundAmount(booking.TotalAmount, trip.DepartureAt, now)
		applied, err := s.bookingRepo.TransitionStatus(
			bookingID, models.BookingStatusConfirmed, models.BookingStatusCancelled, &reason)
		if err != nil {
			return 0, err
		}
		if !applied {
			return s.Cancel(bookingID, reason)
		}
		s.logger.WithFields(logrus.Fields{
			"booking_reference": booking.BookingReference,
			"reason":            reason,
			"refund_amount":     refund,
		}).Info("Confirmed booking cancelled")
		return refund, nil

	default:
		// Terminal already; cancellation is idempotent.
		return 0, nil
	}
}

// GetByReference fetches a booking with its seats.
func (s *BookingService) GetByReference(reference string) (*models.Booking, error) {
	return s.bookingRepo.GetByReference(reference)
}

// ExpireStaleHolds cancels PENDING bookings older than the hold timeout,
// releasing their seats back to the ledger. Called by the sweep, never
// from the request path.
func (s *BookingService) ExpireStaleHolds() (int, error) {
	cutoff := time.Now().Add(-s.cfg.HoldTimeout)
	ids, err := s.bookingRepo.GetExpiredPendingIDs(cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		applied, err := s.ledger.Release(id, "hold_expired")
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", id).Error("Failed to expire booking hold")
			continue
		}
		if applied {
			expired++
			s.logger.WithField("booking_id", id).Info("Booking hold expired, seats released")
		}
	}
	return expired, nil
}

// ReleaseHold cancels a booking only while it is still PENDING, freeing
// its seats. Reconciliation uses this when a payment fails: a booking
// confirmed in the meantime by another payment must not be touched.
func (s *BookingService) ReleaseHold(bookingID uuid.UUID, reason string) (bool, error) {
	return s.ledger.Release(bookingID, reason)
}
