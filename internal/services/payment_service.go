package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/utils"
)

// Gateway status strings as reported by verify and webhook payloads.
const (
	gatewayStatusSuccess = "success"
	gatewayStatusFailed  = "failed"
)

// ClientMeta carries request-origin details into the audit trail.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// PaymentService is the reconciliation engine: every gateway report,
// whether it arrives as a webhook or a verify poll, passes through
// Reconcile and nowhere else. It tolerates retries, duplicates, and
// webhook/poll races without double-confirming a booking.
type PaymentService struct {
	paymentRepo    *database.PaymentRepository
	bookingRepo    *database.BookingRepository
	auditRepo      *database.PaymentAuditRepository
	bookingService *BookingService
	gateway        *GatewayService
	logger         *logrus.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	paymentRepo *database.PaymentRepository,
	bookingRepo *database.BookingRepository,
	auditRepo *database.PaymentAuditRepository,
	bookingService *BookingService,
	gateway *GatewayService,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:    paymentRepo,
		bookingRepo:    bookingRepo,
		auditRepo:      auditRepo,
		bookingService: bookingService,
		gateway:        gateway,
		logger:         logger,
	}
}

// InitializePayment starts a payment attempt for a booking. The PENDING
// payment row is persisted before the gateway call so that a timed-out
// initialization which the gateway actually accepted can still reconcile
// when its webhook arrives. A timeout is an unknown outcome: the booking
// stays PENDING for the expiry sweep.
func (s *PaymentService) InitializePayment(req *models.InitializePaymentRequest, meta ClientMeta) (*models.InitializePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByReference(req.BookingReference)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, &models.StateTransitionError{
			BookingID: booking.ID.String(),
			From:      booking.Status,
			Attempted: "initialize payment",
		}
	}
	if req.Amount != booking.TotalAmount {
		return nil, models.ErrAmountMismatch
	}

	reference := fmt.Sprintf("PAY-%s", strings.ToUpper(uuid.New().String()[:12]))
	payment := &models.Payment{
		BookingID:        booking.ID,
		GatewayReference: reference,
		Amount:           req.Amount,
		PayerEmail:       req.PayerEmail,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetBooking(booking.ID).
		SetPayment(payment.ID).
		SetReference(reference).
		SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent))
	audit.SetAmounts(booking.TotalAmount, req.Amount)
	s.auditRepo.Log(audit)

	result, err := s.gateway.Initialize(reference, req.Amount, req.PayerEmail, map[string]string{
		"booking_reference": booking.BookingReference,
	})
	if err != nil {
		var upstream *models.UpstreamError
		if errors.As(err, &upstream) && upstream.Timeout {
			s.auditRepo.Log(models.NewPaymentAudit(models.PaymentEventGatewayTimeout, models.PaymentSourceBackend).
				SetBooking(booking.ID).
				SetPayment(payment.ID).
				SetReference(reference).
				SetError(upstream.Error()))
			// Unknown outcome: payment stays PENDING, booking stays PENDING.
			return nil, err
		}
		// Hard rejection: the gateway never accepted this attempt.
		if _, ferr := s.paymentRepo.MarkFailed(payment.ID, "gateway initialization failed"); ferr != nil {
			s.logger.WithError(ferr).WithField("reference", reference).Error("Failed to mark rejected payment")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": booking.BookingReference,
		"gateway_reference": reference,
		"amount":            req.Amount,
	}).Info("Payment attempt initialized")

	return &models.InitializePaymentResponse{
		GatewayReference: reference,
		AuthorizationURL: result.AuthorizationURL,
		Amount:           req.Amount,
	}, nil
}

// Reconcile is the single chokepoint that matches one gateway report to
// its payment and drives the booking state machine. Safe to call any
// number of times with the same payload.
func (s *PaymentService) Reconcile(
	reference, reportedStatus string,
	reportedAmount int64,
	source models.PaymentEventSource,
	meta ClientMeta,
) (*models.ReconcileResult, error) {
	payment, err := s.paymentRepo.GetByReference(reference)
	if err != nil {
		// Never create bookings or payments from a gateway report: the
		// payment must already exist from InitializePayment.
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(payment.BookingID)
	if err != nil {
		return nil, err
	}

	// Duplicate delivery of an already-settled success: no state change.
	if payment.Status == models.PaymentStatusPaid {
		s.auditRepo.Log(models.NewPaymentAudit(models.PaymentEventDuplicate, source).
			SetBooking(booking.ID).
			SetPayment(payment.ID).
			SetReference(reference).
			SetGatewayStatus(reportedStatus).
			MarkDuplicate().
			SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent)))
		return s.result(models.OutcomeDuplicate, payment, booking, models.PaymentStatusPaid, booking.Status), nil
	}

	// Tamper guard: the reported amount must equal what was initialized.
	if reportedStatus == gatewayStatusSuccess && reportedAmount != payment.Amount {
		return s.reconcileAmountMismatch(payment, booking, reportedStatus, reportedAmount, source, meta)
	}

	switch reportedStatus {
	case gatewayStatusSuccess:
		return s.reconcileSuccess(payment, booking, reportedStatus, reportedAmount, source, meta)
	case gatewayStatusFailed:
		return s.reconcileFailure(payment, booking, reportedStatus, source, meta)
	default:
		// Not settled yet ("pending", "abandoned", ...): leave everything.
		return s.result(models.OutcomePending, payment, booking, payment.Status, booking.Status), nil
	}
}

func (s *PaymentService) reconcileAmountMismatch(
	payment *models.Payment,
	booking *models.Booking,
	reportedStatus string,
	reportedAmount int64,
	source models.PaymentEventSource,
	meta ClientMeta,
) (*models.ReconcileResult, error) {
	applied, err := s.paymentRepo.MarkFailed(payment.ID, "amount mismatch")
	if err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventReconciliationMismatch, source).
		SetBooking(booking.ID).
		SetPayment(payment.ID).
		SetReference(payment.GatewayReference).
		SetGatewayStatus(reportedStatus).
		SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent))
	audit.SetAmounts(payment.Amount, reportedAmount)
	if !applied {
		audit.MarkDuplicate()
	}
	s.auditRepo.Log(audit)

	s.logger.WithFields(logrus.Fields{
		"gateway_reference": payment.GatewayReference,
		"expected_amount":   payment.Amount,
		"received_amount":   reportedAmount,
	}).Warn("Reconciliation amount mismatch, booking not confirmed")

	// The attempt is dead; free the seats if the booking is still waiting
	// on this payment. A booking confirmed by another payment is left alone.
	if _, err := s.bookingService.ReleaseHold(booking.ID, "payment_amount_mismatch"); err != nil {
		return nil, err
	}

	refreshed, err := s.bookingRepo.GetByID(booking.ID)
	if err != nil {
		return nil, err
	}
	return s.result(models.OutcomeAmountMismatch, payment, booking, models.PaymentStatusFailed, refreshed.Status), nil
}

func (s *PaymentService) reconcileSuccess(
	payment *models.Payment,
	booking *models.Booking,
	reportedStatus string,
	reportedAmount int64,
	source models.PaymentEventSource,
	meta ClientMeta,
) (*models.ReconcileResult, error) {
	paidAt := time.Now()
	applied, err := s.paymentRepo.MarkPaid(payment.ID, paidAt)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a settle race, or the payment had already failed. Re-read
		// and decide.
		current, err := s.paymentRepo.GetByReference(payment.GatewayReference)
		if err != nil {
			return nil, err
		}
		if current.Status == models.PaymentStatusPaid {
			s.auditRepo.Log(models.NewPaymentAudit(models.PaymentEventDuplicate, source).
				SetBooking(booking.ID).
				SetPayment(payment.ID).
				SetReference(payment.GatewayReference).
				MarkDuplicate())
			return s.result(models.OutcomeDuplicate, payment, booking, current.Status, booking.Status), nil
		}
		// Gateway vouches for money on a payment we already failed. An
		// operator must sort out the refund; do not resurrect the attempt.
		s.flagManualReview(payment, booking, source,
			fmt.Sprintf("gateway reported success for %s payment", current.Status))
		return s.result(models.OutcomeManualReview, payment, booking, current.Status, booking.Status), nil
	}

	audit := models.NewPaymentAudit(models.PaymentEventSuccess, source).
		SetBooking(booking.ID).
		SetPayment(payment.ID).
		SetReference(payment.GatewayReference).
		SetGatewayStatus(reportedStatus).
		SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent))
	audit.SetAmounts(payment.Amount, reportedAmount)
	s.auditRepo.Log(audit)

	if err := s.bookingService.Confirm(booking.ID, payment.ID); err != nil {
		var violation *models.InvariantViolationError
		var transition *models.StateTransitionError
		switch {
		case errors.As(err, &violation):
			// Money received twice for one booking. Flag loudly, never
			// swallow, but do not error out to the gateway either: the
			// payment itself is settled.
			s.flagManualReview(payment, booking, source, violation.Error())
			return s.result(models.OutcomeManualReview, payment, booking, models.PaymentStatusPaid, booking.Status), nil
		case errors.As(err, &transition):
			// Paid after the booking left PENDING (e.g. hold expired and
			// seats were resold). Money moved; operator must refund.
			s.flagManualReview(payment, booking, source, transition.Error())
			return s.result(models.OutcomeManualReview, payment, booking, models.PaymentStatusPaid, transition.From), nil
		default:
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": booking.BookingReference,
		"gateway_reference": payment.GatewayReference,
		"amount":            payment.Amount,
	}).Info("Payment reconciled, booking confirmed")

	return s.result(models.OutcomeConfirmed, payment, booking, models.PaymentStatusPaid, models.BookingStatusConfirmed), nil
}

func (s *PaymentService) reconcileFailure(
	payment *models.Payment,
	booking *models.Booking,
	reportedStatus string,
	source models.PaymentEventSource,
	meta ClientMeta,
) (*models.ReconcileResult, error) {
	applied, err := s.paymentRepo.MarkFailed(payment.ID, "gateway reported failure")
	if err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventFailed, source).
		SetBooking(booking.ID).
		SetPayment(payment.ID).
		SetReference(payment.GatewayReference).
		SetGatewayStatus(reportedStatus).
		SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent))
	if !applied {
		audit.MarkDuplicate()
	}
	s.auditRepo.Log(audit)

	// Release the seats so they return to availability. Only a booking
	// still PENDING on this payment is cancelled.
	if _, err := s.bookingService.ReleaseHold(booking.ID, "payment_failed"); err != nil {
		return nil, err
	}

	refreshed, err := s.bookingRepo.GetByID(booking.ID)
	if err != nil {
		return nil, err
	}
	return s.result(models.OutcomeFailed, payment, booking, models.PaymentStatusFailed, refreshed.Status), nil
}

// VerifyAndReconcile is the poll path: ask the gateway for the state of a
// reference, then push the answer through Reconcile.
func (s *PaymentService) VerifyAndReconcile(reference string, meta ClientMeta) (*models.ReconcileResult, error) {
	return s.verifyAndReconcile(reference, models.PaymentSourceVerify, meta)
}

func (s *PaymentService) verifyAndReconcile(
	reference string,
	source models.PaymentEventSource,
	meta ClientMeta,
) (*models.ReconcileResult, error) {
	s.auditRepo.Log(models.NewPaymentAudit(models.PaymentEventVerifyRequested, source).
		SetReference(reference).
		SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent)))

	verified, err := s.gateway.Verify(reference)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(reference, verified.Status, verified.Amount, source, meta)
}

// ReconcileStalePending verifies payments that sat in PENDING past the
// cutoff and pushes the gateway's answer through Reconcile. Catches the
// lost-webhook case where the customer also never polled verify. Gateway
// errors on one reference do not stop the rest.
func (s *PaymentService) ReconcileStalePending(cutoff time.Time) (int, error) {
	references, err := s.paymentRepo.GetStalePendingReferences(cutoff)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, reference := range references {
		result, err := s.verifyAndReconcile(reference, models.PaymentSourceSweep, ClientMeta{})
		if err != nil {
			s.logger.WithError(err).WithField("gateway_reference", reference).
				Warn("Stale payment verification failed")
			continue
		}
		if result.Outcome != models.OutcomePending {
			settled++
		}
	}
	return settled, nil
}

// FlagRejectedWebhook audits a webhook delivery whose signature did not
// verify. The body is untrusted and stays unparsed; only the raw bytes
// and the caller's origin are recorded.
func (s *PaymentService) FlagRejectedWebhook(rawBody []byte, meta ClientMeta) {
	s.auditRepo.Log(models.NewPaymentAudit(models.PaymentEventWebhookRejected, models.PaymentSourceWebhook).
		SetRawBody(string(rawBody)).
		SetError("webhook signature verification failed").
		SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent)))
}

// AuditTrail returns the recorded events for a gateway reference, oldest
// first.
func (s *PaymentService) AuditTrail(reference string) ([]models.PaymentAudit, error) {
	return s.auditRepo.ListByReference(reference)
}

// ProcessWebhook reconciles a signature-verified webhook event.
func (s *PaymentService) ProcessWebhook(event *WebhookEvent, rawBody []byte, meta ClientMeta) (*models.ReconcileResult, error) {
	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
		SetReference(event.Data.Reference).
		SetGatewayStatus(event.Event).
		SetRawBody(string(rawBody)).
		SetClientMeta(meta.IP, utils.NormalizeUserAgent(meta.UserAgent))
	s.auditRepo.Log(audit)

	status := ""
	switch event.Event {
	case "charge.success":
		status = gatewayStatusSuccess
	case "charge.failed":
		status = gatewayStatusFailed
	default:
		s.logger.WithField("event", event.Event).Info("Ignoring unhandled webhook event")
		return nil, nil
	}

	return s.Reconcile(event.Data.Reference, status, event.Data.Amount, models.PaymentSourceWebhook, meta)
}

func (s *PaymentService) flagManualReview(
	payment *models.Payment,
	booking *models.Booking,
	source models.PaymentEventSource,
	detail string,
) {
	s.logger.WithFields(logrus.Fields{
		"booking_reference": booking.BookingReference,
		"gateway_reference": payment.GatewayReference,
		"detail":            detail,
	}).Error("Payment requires manual review")

	s.auditRepo.Log(models.NewPaymentAudit(models.PaymentEventManualReviewRequired, source).
		SetBooking(booking.ID).
		SetPayment(payment.ID).
		SetReference(payment.GatewayReference).
		SetError(detail))
}

func (s *PaymentService) result(
	outcome models.ReconcileOutcome,
	payment *models.Payment,
	booking *models.Booking,
	paymentStatus models.PaymentStatus,
	bookingStatus models.BookingStatus,
) *models.ReconcileResult {
	return &models.ReconcileResult{
		Outcome:          outcome,
		GatewayReference: payment.GatewayReference,
		PaymentStatus:    paymentStatus,
		BookingStatus:    bookingStatus,
		BookingReference: booking.BookingReference,
	}
}
