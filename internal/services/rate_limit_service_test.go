package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
)

func setupRateLimitTest(t *testing.T) (*RateLimitService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	postgresDB := &database.PostgresDB{DB: sqlxDB}
	service := NewRateLimitService(postgresDB, config.RateLimitConfig{
		MaxAttempts: 3,
		Window:      10 * time.Minute,
	})

	cleanup := func() {
		db.Close()
	}

	return service, mock, cleanup
}

func TestRateLimitCheck_UnderLimit(t *testing.T) {
	service, mock, cleanup := setupRateLimitTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT(.+) FROM rate_limits").
		WithArgs("192.168.1.1", ActionBookingCreate, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).
			AddRow(2, time.Now()))

	err := service.Check("192.168.1.1", ActionBookingCreate)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitCheck_Exceeded(t *testing.T) {
	service, mock, cleanup := setupRateLimitTest(t)
	defer cleanup()

	lastAttempt := time.Now().Add(-2 * time.Minute)
	mock.ExpectQuery("SELECT COUNT(.+) FROM rate_limits").
		WithArgs("192.168.1.1", ActionPaymentInit, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).
			AddRow(3, lastAttempt))

	err := service.Check("192.168.1.1", ActionPaymentInit)
	require.Error(t, err)

	var rateLimitErr *RateLimitError
	require.True(t, errors.As(err, &rateLimitErr))
	assert.Equal(t, ActionPaymentInit, rateLimitErr.Action)
	assert.WithinDuration(t, lastAttempt.Add(10*time.Minute), rateLimitErr.RetryAfter, time.Second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitCheck_EmptyIdentifierSkipped(t *testing.T) {
	service, mock, cleanup := setupRateLimitTest(t)
	defer cleanup()

	err := service.Check("", ActionBookingCreate)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitRecord(t *testing.T) {
	service, mock, cleanup := setupRateLimitTest(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO rate_limits").
		WithArgs("192.168.1.1", ActionBookingCreate).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := service.Record("192.168.1.1", ActionBookingCreate)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitPrune(t *testing.T) {
	service, mock, cleanup := setupRateLimitTest(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM rate_limits").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 42))

	removed, err := service.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
