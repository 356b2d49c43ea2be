package models

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus represents the lifecycle state of a scheduled trip.
// Matches PostgreSQL ENUM: trip_status
type TripStatus string

const (
	TripStatusActive    TripStatus = "ACTIVE"
	TripStatusInactive  TripStatus = "INACTIVE"
	TripStatusCancelled TripStatus = "CANCELLED"
	TripStatusCompleted TripStatus = "COMPLETED"
)

// Trip identifies one scheduled departure. It owns a fixed seat ledger
// created at trip creation and never mutated afterwards.
type Trip struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	RouteID       uuid.UUID  `json:"route_id" db:"route_id"`
	DepartureAt   time.Time  `json:"departure_at" db:"departure_at"`
	ArrivalAt     time.Time  `json:"arrival_at" db:"arrival_at"`
	MaxPassengers int        `json:"max_passengers" db:"max_passengers"`
	Status        TripStatus `json:"status" db:"status"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsBookable reports whether new bookings may be created for this trip.
func (t *Trip) IsBookable(now time.Time) bool {
	return t.Status == TripStatusActive && t.DepartureAt.After(now)
}

// TripSeat is one declared seat label on a trip. Occupancy is not stored
// here: whether a seat is free is derived from booking_seats at read time
// so the booking rows remain the single source of truth.
type TripSeat struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TripID    uuid.UUID `json:"trip_id" db:"trip_id"`
	SeatLabel string    `json:"seat_label" db:"seat_label"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SeatAvailability is the derived read answering "which seats are free".
type SeatAvailability struct {
	TripID         uuid.UUID `json:"trip_id"`
	TotalSeats     int       `json:"totalSeats"`
	BookedSeats    []string  `json:"bookedSeats"`
	AvailableSeats []string  `json:"availableSeats"`
	AvailableCount int       `json:"availableCount"`
}

// CreateTripRequest is the admin request to schedule a trip.
type CreateTripRequest struct {
	RouteID       string    `json:"route_id" binding:"required"`
	DepartureAt   time.Time `json:"departure_at" binding:"required"`
	ArrivalAt     time.Time `json:"arrival_at" binding:"required"`
	MaxPassengers int       `json:"max_passengers" binding:"required"`
}

// Validate checks request fields beyond binding tags.
func (r *CreateTripRequest) Validate() error {
	if _, err := uuid.Parse(r.RouteID); err != nil {
		return NewValidationError("route_id", "must be a valid UUID")
	}
	if r.MaxPassengers < 1 {
		return NewValidationError("max_passengers", "must be at least 1")
	}
	if r.MaxPassengers > 100 {
		return NewValidationError("max_passengers", "must not exceed 100")
	}
	if !r.ArrivalAt.After(r.DepartureAt) {
		return NewValidationError("arrival_at", "must be after departure_at")
	}
	return nil
}

// UpdateTripRequest carries optional schedule changes. Only non-nil fields
// are persisted; dynamic map payloads are deliberately not accepted.
type UpdateTripRequest struct {
	DepartureAt *time.Time `json:"departure_at,omitempty"`
	ArrivalAt   *time.Time `json:"arrival_at,omitempty"`
	RouteID     *string    `json:"route_id,omitempty"`
}

// Validate checks the provided fields.
func (r *UpdateTripRequest) Validate() error {
	if r.DepartureAt == nil && r.ArrivalAt == nil && r.RouteID == nil {
		return NewValidationError("", "no fields to update")
	}
	if r.RouteID != nil {
		if _, err := uuid.Parse(*r.RouteID); err != nil {
			return NewValidationError("route_id", "must be a valid UUID")
		}
	}
	if r.DepartureAt != nil && r.ArrivalAt != nil && !r.ArrivalAt.After(*r.DepartureAt) {
		return NewValidationError("arrival_at", "must be after departure_at")
	}
	return nil
}

// UpdateTripStatusRequest changes a trip's lifecycle status.
type UpdateTripStatusRequest struct {
	Status TripStatus `json:"status" binding:"required"`
}

// Validate checks the status is a known value.
func (r *UpdateTripStatusRequest) Validate() error {
	switch r.Status {
	case TripStatusActive, TripStatusInactive, TripStatusCancelled, TripStatusCompleted:
		return nil
	}
	return NewValidationError("status", "must be one of ACTIVE, INACTIVE, CANCELLED, COMPLETED")
}
