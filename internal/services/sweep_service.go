package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
)

// Payments younger than this are left to the webhook and verify paths
// before the sweep starts asking the gateway about them.
const stalePaymentAge = 5 * time.Minute

// SweepService runs the scheduled background jobs: hold expiry, stale
// payment reconciliation, administrative completion after departure, and
// rate-limit pruning. Everything here runs off the request path.
type SweepService struct {
	cron           *cron.Cron
	bookingService *BookingService
	paymentService *PaymentService
	tripRepo       *database.TripRepository
	bookingRepo    *database.BookingRepository
	rateLimits     *RateLimitService
	logger         *logrus.Logger
}

// NewSweepService creates a new SweepService.
func NewSweepService(
	bookingService *BookingService,
	paymentService *PaymentService,
	tripRepo *database.TripRepository,
	bookingRepo *database.BookingRepository,
	rateLimits *RateLimitService,
	logger *logrus.Logger,
) *SweepService {
	return &SweepService{
		cron:           cron.New(cron.WithSeconds()),
		bookingService: bookingService,
		paymentService: paymentService,
		tripRepo:       tripRepo,
		bookingRepo:    bookingRepo,
		rateLimits:     rateLimits,
		logger:         logger,
	}
}

// Start registers and starts all jobs.
func (s *SweepService) Start() error {
	// Every minute: cancel PENDING bookings past the hold timeout.
	if _, err := s.cron.AddFunc("0 * * * * *", s.expireHoldsJob); err != nil {
		return fmt.Errorf("failed to schedule hold expiry job: %w", err)
	}

	// Every 5 minutes: verify payments stuck in PENDING, catching webhooks
	// the gateway never delivered.
	if _, err := s.cron.AddFunc("30 */5 * * * *", s.reconcileStalePaymentsJob); err != nil {
		return fmt.Errorf("failed to schedule payment reconciliation job: %w", err)
	}

	// Every 10 minutes: complete departed trips and their bookings.
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.completeDeparturesJob); err != nil {
		return fmt.Errorf("failed to schedule departure completion job: %w", err)
	}

	// Hourly: prune rate-limit records outside the window.
	if _, err := s.cron.AddFunc("0 0 * * * *", s.pruneRateLimitsJob); err != nil {
		return fmt.Errorf("failed to schedule rate limit pruning job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Sweep service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *SweepService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Sweep service stopped")
}

func (s *SweepService) expireHoldsJob() {
	expired, err := s.bookingService.ExpireStaleHolds()
	if err != nil {
		s.logger.WithError(err).Error("Hold expiry sweep failed")
		return
	}
	if expired > 0 {
		s.logger.WithField("expired", expired).Info("Hold expiry sweep released bookings")
	}
}

func (s *SweepService) reconcileStalePaymentsJob() {
	settled, err := s.paymentService.ReconcileStalePending(time.Now().Add(-stalePaymentAge))
	if err != nil {
		s.logger.WithError(err).Error("Stale payment reconciliation sweep failed")
		return
	}
	if settled > 0 {
		s.logger.WithField("settled", settled).Info("Stale payment sweep settled payments")
	}
}

func (s *SweepService) completeDeparturesJob() {
	start := time.Now()
	tripIDs, err := s.tripRepo.GetDepartedActiveTripIDs(start)
	if err != nil {
		s.logger.WithError(err).Error("Departure completion sweep failed to list trips")
		return
	}

	for _, tripID := range tripIDs {
		completed, err := s.bookingRepo.CompleteConfirmedForTrip(tripID)
		if err != nil {
			s.logger.WithError(err).WithField("trip_id", tripID).Error("Failed to complete bookings for departed trip")
			continue
		}
		if err := s.tripRepo.UpdateStatus(tripID, models.TripStatusCompleted); err != nil {
			s.logger.WithError(err).WithField("trip_id", tripID).Error("Failed to mark trip completed")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"trip_id":            tripID,
			"bookings_completed": completed,
		}).Info("Departed trip completed")
	}
}

func (s *SweepService) pruneRateLimitsJob() {
	pruned, err := s.rateLimits.Prune()
	if err != nil {
		s.logger.WithError(err).Error("Rate limit pruning failed")
		return
	}
	if pruned > 0 {
		s.logger.WithField("pruned", pruned).Debug("Rate limit records pruned")
	}
}
