package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tripline/booking-backend/internal/models"
)

// TripRepository handles trip and trip-seat database operations.
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository.
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

// Create inserts a trip row. Seat labels are declared separately through
// InitializeSeats; a trip without a seat ledger accepts no bookings.
func (r *TripRepository) Create(trip *models.Trip) error {
	if trip.ID == uuid.Nil {
		trip.ID = uuid.New()
	}
	now := time.Now()
	trip.CreatedAt = now
	trip.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO trips (id, route_id, departure_at, arrival_at, max_passengers, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		trip.ID, trip.RouteID, trip.DepartureAt, trip.ArrivalAt,
		trip.MaxPassengers, trip.Status, trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}
	return nil
}

// InitializeSeats declares seat labels for an existing trip. Exactly one
// initialization is allowed per trip.
func (r *TripRepository) InitializeSeats(tripID uuid.UUID, seatLabels []string) error {
	var existing int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trip_seats WHERE trip_id = $1`, tripID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check existing seats: %w", err)
	}
	if existing > 0 {
		return models.ErrDuplicateInitialization
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, label := range seatLabels {
		// ON CONFLICT DO NOTHING + affected-row check closes the race
		// between two concurrent initializations.
		result, err := tx.Exec(`
			INSERT INTO trip_seats (id, trip_id, seat_label, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (trip_id, seat_label) DO NOTHING`,
			uuid.New(), tripID, label, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert seat %s: %w", label, err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return models.ErrDuplicateInitialization
		}
	}

	return tx.Commit()
}

// GetByID retrieves a trip by ID. Returns models.ErrTripNotFound when absent.
func (r *TripRepository) GetByID(tripID uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.Get(&trip, `
		SELECT id, route_id, departure_at, arrival_at, max_passengers, status, created_at, updated_at
		FROM trips
		WHERE id = $1`, tripID)
	if err == sql.ErrNoRows {
		return nil, models.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetSeatLabels returns the declared seat labels for a trip in label order.
func (r *TripRepository) GetSeatLabels(tripID uuid.UUID) ([]string, error) {
	var labels []string
	err := r.db.Select(&labels, `
		SELECT seat_label FROM trip_seats
		WHERE trip_id = $1
		ORDER BY seat_label`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat labels: %w", err)
	}
	return labels, nil
}

// Update applies the non-nil fields of an update request.
func (r *TripRepository) Update(tripID uuid.UUID, req *models.UpdateTripRequest) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	idx := 1

	if req.DepartureAt != nil {
		sets = append(sets, fmt.Sprintf("departure_at = $%d", idx))
		args = append(args, *req.DepartureAt)
		idx++
	}
	if req.ArrivalAt != nil {
		sets = append(sets, fmt.Sprintf("arrival_at = $%d", idx))
		args = append(args, *req.ArrivalAt)
		idx++
	}
	if req.RouteID != nil {
		sets = append(sets, fmt.Sprintf("route_id = $%d", idx))
		args = append(args, *req.RouteID)
		idx++
	}

	args = append(args, tripID)
	query := fmt.Sprintf("UPDATE trips SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return models.ErrTripNotFound
	}
	return nil
}

// UpdateStatus changes the trip lifecycle status.
func (r *TripRepository) UpdateStatus(tripID uuid.UUID, status models.TripStatus) error {
	result, err := r.db.Exec(`
		UPDATE trips SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, tripID)
	if err != nil {
		return fmt.Errorf("failed to update trip status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return models.ErrTripNotFound
	}
	return nil
}

// CountBookings returns the number of bookings ever made on a trip,
// including terminal ones. Used by the delete guard.
func (r *TripRepository) CountBookings(tripID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM bookings WHERE trip_id = $1`, tripID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// Delete removes a trip and its seat ledger. The caller must have verified
// the trip has zero bookings.
func (r *TripRepository) Delete(tripID uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trip_seats WHERE trip_id = $1`, tripID); err != nil {
		return fmt.Errorf("failed to delete trip seats: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM trips WHERE id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return models.ErrTripNotFound
	}

	return tx.Commit()
}

// GetDepartedActiveTripIDs returns ACTIVE trips whose departure has passed.
// The sweep uses this for administrative completion.
func (r *TripRepository) GetDepartedActiveTripIDs(now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Select(&ids, `
		SELECT id FROM trips
		WHERE status = 'ACTIVE' AND departure_at < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list departed trips: %w", err)
	}
	return ids, nil
}
