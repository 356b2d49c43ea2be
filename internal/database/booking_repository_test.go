package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/models"
)

func setupBookingRepoTest(t *testing.T) (*BookingRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewBookingRepository(&PostgresDB{DB: sqlxDB})

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func testSeats(labels ...string) []models.BookingSeat {
	seats := make([]models.BookingSeat, len(labels))
	for i, l := range labels {
		seats[i] = models.BookingSeat{SeatLabel: l, PassengerName: "Passenger"}
	}
	return seats
}

func TestCreateWithSeats_Success(t *testing.T) {
	repo, mock, cleanup := setupBookingRepoTest(t)
	defer cleanup()

	tripID := uuid.New()
	booking := &models.Booking{
		BookingReference: "TRP-20260910080000-AAAA",
		TripID:           tripID,
		TotalAmount:      250000,
		ContactEmail:     "rider@example.com",
	}

	mock.ExpectBegin()
	// Lock the declared seat rows.
	mock.ExpectQuery("SELECT seat_label FROM trip_seats").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A1").AddRow("B1"))
	// No label attached to an active booking.
	mock.ExpectQuery("SELECT bs.seat_label").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}))
	// Capacity: 40 declared, 10 occupied.
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM trip_seats`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateWithSeats(booking, testSeats("A1", "B1"))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, booking.ID)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Len(t, booking.Seats, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithSeats_UnknownLabel(t *testing.T) {
	repo, mock, cleanup := setupBookingRepoTest(t)
	defer cleanup()

	booking := &models.Booking{TripID: uuid.New(), TotalAmount: 250000}

	mock.ExpectBegin()
	// Only A1 is declared for this trip; Z9 never comes back.
	mock.ExpectQuery("SELECT seat_label FROM trip_seats").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A1"))
	mock.ExpectRollback()

	err := repo.CreateWithSeats(booking, testSeats("A1", "Z9"))
	require.Error(t, err)

	var invalidSeat *models.InvalidSeatError
	require.True(t, errors.As(err, &invalidSeat))
	assert.Equal(t, []string{"Z9"}, invalidSeat.UnknownSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithSeats_SeatConflict(t *testing.T) {
	repo, mock, cleanup := setupBookingRepoTest(t)
	defer cleanup()

	booking := &models.Booking{TripID: uuid.New(), TotalAmount: 250000}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT seat_label FROM trip_seats").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A1").AddRow("B1"))
	// B1 already belongs to a PENDING or CONFIRMED booking.
	mock.ExpectQuery("SELECT bs.seat_label").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("B1"))
	mock.ExpectRollback()

	err := repo.CreateWithSeats(booking, testSeats("A1", "B1"))
	require.Error(t, err)

	var conflict *models.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"B1"}, conflict.TakenSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithSeats_CapacityExceeded(t *testing.T) {
	repo, mock, cleanup := setupBookingRepoTest(t)
	defer cleanup()

	booking := &models.Booking{TripID: uuid.New(), TotalAmount: 250000}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT seat_label FROM trip_seats").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A1").AddRow("B1"))
	mock.ExpectQuery("SELECT bs.seat_label").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}))
	// 2 declared, 1 occupied: a 2-seat request does not fit.
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM trip_seats`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.CreateWithSeats(booking, testSeats("A1", "B1"))
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_Applied(t *testing.T) {
	repo, mock, cleanup := setupBookingRepoTest(t)
	defer cleanup()

	bookingID := uuid.New()
	reason := "payment_failed"

	mock.ExpectExec("UPDATE bookings").
		WithArgs(models.BookingStatusCancelled, &reason, bookingID, models.BookingStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.TransitionStatus(bookingID, models.BookingStatusPending, models.BookingStatusCancelled, &reason)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_WrongSourceState(t *testing.T) {
	repo, mock, cleanup := setupBookingRepoTest(t)
	defer cleanup()

	bookingID := uuid.New()

	mock.ExpectExec("UPDATE bookings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.TransitionStatus(bookingID, models.BookingStatusPending, models.BookingStatusConfirmed, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByReference_NotFound(t *testing.T) {
	repo, mock, cleanup := setupBookingRepoTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs("TRP-MISSING").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByReference("TRP-MISSING")
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
