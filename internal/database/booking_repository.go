package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tripline/booking-backend/internal/models"
)

// BookingRepository handles booking and booking-seat database operations.
// All seat occupancy is derived from booking_seats joined against active
// bookings; there is no separately mutated occupancy flag to drift.
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateWithSeats atomically creates a PENDING booking and attaches its
// seat labels. Either the booking and every seat row commit together or
// nothing does.
//
// Concurrent reservations for overlapping labels are serialized by locking
// the declared trip_seats rows (SELECT ... FOR UPDATE) before checking
// occupancy, so a check-then-insert race cannot double-sell a label.
func (r *BookingRepository) CreateWithSeats(booking *models.Booking, seats []models.BookingSeat) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Status = models.BookingStatusPending

	labels := make([]string, len(seats))
	for i, s := range seats {
		labels[i] = s.SeatLabel
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Lock the declared seat rows for the requested labels. Labels that
	// do not come back do not belong to this trip.
	query, args, err := sqlx.In(`
		SELECT seat_label FROM trip_seats
		WHERE trip_id = ? AND seat_label IN (?)
		FOR UPDATE`, booking.TripID, labels)
	if err != nil {
		return fmt.Errorf("failed to build seat lock query: %w", err)
	}
	var declared []string
	if err := tx.Select(&declared, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to lock trip seats: %w", err)
	}
	if len(declared) < len(labels) {
		declaredSet := make(map[string]bool, len(declared))
		for _, l := range declared {
			declaredSet[l] = true
		}
		var unknown []string
		for _, l := range labels {
			if !declaredSet[l] {
				unknown = append(unknown, l)
			}
		}
		return &models.InvalidSeatError{TripID: booking.TripID.String(), UnknownSeats: unknown}
	}

	// 2. With the locks held, find labels already attached to an active
	// booking. Any hit is a conflict.
	query, args, err = sqlx.In(`
		SELECT bs.seat_label
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE bs.trip_id = ? AND bs.seat_label IN (?)
		  AND b.status IN ('PENDING', 'CONFIRMED')`, booking.TripID, labels)
	if err != nil {
		return fmt.Errorf("failed to build occupancy query: %w", err)
	}
	var taken []string
	if err := tx.Select(&taken, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to check seat occupancy: %w", err)
	}
	if len(taken) > 0 {
		return &models.SeatConflictError{TripID: booking.TripID.String(), TakenSeats: taken}
	}

	// 3. Capacity guard: the request must fit the remaining free seats.
	var total, occupied int
	err = tx.QueryRow(`SELECT COUNT(*) FROM trip_seats WHERE trip_id = $1`, booking.TripID).Scan(&total)
	if err != nil {
		return fmt.Errorf("failed to count declared seats: %w", err)
	}
	err = tx.QueryRow(`
		SELECT COUNT(*)
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE bs.trip_id = $1 AND b.status IN ('PENDING', 'CONFIRMED')`, booking.TripID).Scan(&occupied)
	if err != nil {
		return fmt.Errorf("failed to count occupied seats: %w", err)
	}
	if len(labels) > total-occupied {
		return models.ErrCapacityExceeded
	}

	// 4. Insert the booking and its seat attachments.
	_, err = tx.Exec(`
		INSERT INTO bookings (id, booking_reference, trip_id, status, total_amount,
			contact_email, contact_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		booking.ID, booking.BookingReference, booking.TripID, booking.Status,
		booking.TotalAmount, booking.ContactEmail, booking.ContactPhone,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	for i := range seats {
		seats[i].ID = uuid.New()
		seats[i].BookingID = booking.ID
		seats[i].TripID = booking.TripID
		seats[i].CreatedAt = now
		_, err = tx.Exec(`
			INSERT INTO booking_seats (id, booking_id, trip_id, seat_label, passenger_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			seats[i].ID, seats[i].BookingID, seats[i].TripID,
			seats[i].SeatLabel, seats[i].PassengerName, seats[i].CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert booking seat %s: %w", seats[i].SeatLabel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	booking.Seats = seats
	return nil
}

// GetByID retrieves a booking without its seats.
func (r *BookingRepository) GetByID(bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `
		SELECT id, booking_reference, trip_id, status, total_amount,
		       contact_email, contact_phone, cancel_reason, created_at, updated_at
		FROM bookings
		WHERE id = $1`, bookingID)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetByReference retrieves a booking by its human-shareable reference,
// including its seat attachments.
func (r *BookingRepository) GetByReference(reference string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Get(&booking, `
		SELECT id, booking_reference, trip_id, status, total_amount,
		       contact_email, contact_phone, cancel_reason, created_at, updated_at
		FROM bookings
		WHERE booking_reference = $1`, reference)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	seats, err := r.GetSeats(booking.ID)
	if err != nil {
		return nil, err
	}
	booking.Seats = seats
	return &booking, nil
}

// GetSeats returns the seat attachments of a booking.
func (r *BookingRepository) GetSeats(bookingID uuid.UUID) ([]models.BookingSeat, error) {
	var seats []models.BookingSeat
	err := r.db.Select(&seats, `
		SELECT id, booking_id, trip_id, seat_label, passenger_name, created_at
		FROM booking_seats
		WHERE booking_id = $1
		ORDER BY seat_label`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking seats: %w", err)
	}
	return seats, nil
}

// ReferenceExists reports whether a booking reference is already in use.
func (r *BookingRepository) ReferenceExists(reference string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, reference).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return count > 0, nil
}

// TransitionStatus moves a booking from one status to another as a single
// conditional write. Returns true when the transition was applied, false
// when the booking was not in the expected source status.
func (r *BookingRepository) TransitionStatus(bookingID uuid.UUID, from, to models.BookingStatus, reason *string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET status = $1, cancel_reason = COALESCE($2, cancel_reason), updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		to, reason, bookingID, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition booking status: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// GetActiveSeatLabels returns the labels currently attached to PENDING or
// CONFIRMED bookings on a trip. This is the availability read side.
func (r *BookingRepository) GetActiveSeatLabels(tripID uuid.UUID) ([]string, error) {
	var labels []string
	err := r.db.Select(&labels, `
		SELECT bs.seat_label
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE bs.trip_id = $1 AND b.status IN ('PENDING', 'CONFIRMED')
		ORDER BY bs.seat_label`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active seat labels: %w", err)
	}
	return labels, nil
}

// GetExpiredPendingIDs returns PENDING bookings created before the cutoff.
// The expiry sweep cancels them one by one so each release is logged.
func (r *BookingRepository) GetExpiredPendingIDs(cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Select(&ids, `
		SELECT id FROM bookings
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending bookings: %w", err)
	}
	return ids, nil
}

// CompleteConfirmedForTrip marks all CONFIRMED bookings on a departed trip
// as COMPLETED. Returns the number of bookings completed.
func (r *BookingRepository) CompleteConfirmedForTrip(tripID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET status = 'COMPLETED', updated_at = NOW()
		WHERE trip_id = $1 AND status = 'CONFIRMED'`, tripID)
	if err != nil {
		return 0, fmt.Errorf("failed to complete bookings: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}
