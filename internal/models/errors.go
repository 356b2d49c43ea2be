package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lookup and state failures. Handlers map these to
// HTTP status codes in one place.
var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")

	ErrDuplicateInitialization = errors.New("seats already initialized for trip")
	ErrDuplicateReference      = errors.New("duplicate reference")
	ErrUnknownReference        = errors.New("unknown gateway reference")
	ErrAmountMismatch          = errors.New("amount does not match booking total")
	ErrCapacityExceeded        = errors.New("requested seats exceed remaining capacity")
	ErrTripNotBookable         = errors.New("trip is not open for booking")
	ErrTripDeparted            = errors.New("trip has already departed")
	ErrTripHasBookings         = errors.New("trip has bookings and cannot be deleted")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError reports bad input on a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SeatConflictError is returned when requested seat labels are already
// attached to a PENDING or CONFIRMED booking on the trip.
type SeatConflictError struct {
	TripID     string
	TakenSeats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats no longer available: %s", strings.Join(e.TakenSeats, ", "))
}

// InvalidSeatError is returned when a requested label does not belong to
// the trip's declared seat set.
type InvalidSeatError struct {
	TripID       string
	UnknownSeats []string
}

func (e *InvalidSeatError) Error() string {
	return fmt.Sprintf("seats do not exist on this trip: %s", strings.Join(e.UnknownSeats, ", "))
}

// InvariantViolationError reports a booking confirmed by two different
// payments. It must never be swallowed: money has moved without a clear
// single owning booking, so callers route it to the manual-review path.
type InvariantViolationError struct {
	BookingID          string
	ConfirmedPaymentID string
	AttemptedPaymentID string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf(
		"booking %s already confirmed by payment %s, refusing confirmation by payment %s",
		e.BookingID, e.ConfirmedPaymentID, e.AttemptedPaymentID,
	)
}

// StateTransitionError reports an operation applied in a state that does
// not allow it (e.g. confirming a CANCELLED booking).
type StateTransitionError struct {
	BookingID string
	From      BookingStatus
	Attempted string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("booking %s: cannot %s from status %s", e.BookingID, e.Attempted, e.From)
}

// UpstreamError wraps a payment-gateway call failure. Timeout marks an
// unknown outcome: the booking stays PENDING for the expiry sweep.
type UpstreamError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("payment gateway %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
