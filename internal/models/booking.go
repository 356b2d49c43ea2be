package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking.
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// IsActive reports whether the booking holds its seats. Only PENDING and
// CONFIRMED bookings occupy seat labels on a trip.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// Booking is a customer's reservation of one or more seats on a trip.
// TotalAmount is in minor currency units.
type Booking struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	BookingReference string        `json:"booking_reference" db:"booking_reference"`
	TripID           uuid.UUID     `json:"trip_id" db:"trip_id"`
	Status           BookingStatus `json:"status" db:"status"`
	TotalAmount      int64         `json:"total_amount" db:"total_amount"`
	ContactEmail     string        `json:"contact_email" db:"contact_email"`
	ContactPhone     string        `json:"contact_phone" db:"contact_phone"`
	CancelReason     *string       `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`

	// Loaded alongside the row when requested.
	Seats []BookingSeat `json:"seats,omitempty" db:"-"`
}

// BookingSeat attaches one seat label on a trip to a booking. At most one
// attachment per (trip_id, seat_label) may belong to an active booking at
// any instant; the repository enforces this at write time.
type BookingSeat struct {
	ID            uuid.UUID `json:"id" db:"id"`
	BookingID     uuid.UUID `json:"booking_id" db:"booking_id"`
	TripID        uuid.UUID `json:"trip_id" db:"trip_id"`
	SeatLabel     string    `json:"seat_label" db:"seat_label"`
	PassengerName string    `json:"passenger_name" db:"passenger_name"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// PassengerDetail pairs a requested seat with its passenger.
type PassengerDetail struct {
	SeatLabel     string `json:"seat_label" binding:"required"`
	PassengerName string `json:"passenger_name" binding:"required"`
}

// CreateBookingRequest is the public booking-creation payload.
type CreateBookingRequest struct {
	TripID       string            `json:"trip_id" binding:"required"`
	Passengers   []PassengerDetail `json:"passengers" binding:"required"`
	TotalAmount  int64             `json:"total_amount" binding:"required"`
	ContactEmail string            `json:"contact_email" binding:"required,email"`
	ContactPhone string            `json:"contact_phone"`
}

// Validate checks structural rules the binding tags cannot express.
func (r *CreateBookingRequest) Validate() error {
	if _, err := uuid.Parse(r.TripID); err != nil {
		return NewValidationError("trip_id", "must be a valid UUID")
	}
	if len(r.Passengers) == 0 {
		return NewValidationError("passengers", "at least one seat is required")
	}
	if r.TotalAmount <= 0 {
		return NewValidationError("total_amount", "must be positive")
	}
	seen := make(map[string]bool, len(r.Passengers))
	for _, p := range r.Passengers {
		label := strings.TrimSpace(p.SeatLabel)
		if label == "" {
			return NewValidationError("seat_label", "must not be empty")
		}
		if seen[label] {
			return NewValidationError("seat_label", "seat "+label+" requested more than once")
		}
		seen[label] = true
		if strings.TrimSpace(p.PassengerName) == "" {
			return NewValidationError("passenger_name", "must not be empty")
		}
	}
	return nil
}

// SeatLabels returns the requested labels in request order.
func (r *CreateBookingRequest) SeatLabels() []string {
	labels := make([]string, len(r.Passengers))
	for i, p := range r.Passengers {
		labels[i] = strings.TrimSpace(p.SeatLabel)
	}
	return labels
}

// BookingResponse is returned on creation and lookup.
type BookingResponse struct {
	BookingReference string        `json:"bookingReference"`
	Status           BookingStatus `json:"status"`
	TotalAmount      int64         `json:"totalAmount"`
	TripID           uuid.UUID     `json:"tripId"`
	Seats            []string      `json:"seats"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// ToResponse builds the public view of a booking.
func (b *Booking) ToResponse() *BookingResponse {
	seats := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		seats[i] = s.SeatLabel
	}
	return &BookingResponse{
		BookingReference: b.BookingReference,
		Status:           b.Status,
		TotalAmount:      b.TotalAmount,
		TripID:           b.TripID,
		Seats:            seats,
		CreatedAt:        b.CreatedAt,
	}
}

// CancelBookingRequest carries an optional cancellation reason.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}
