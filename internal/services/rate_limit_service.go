package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
)

// Actions bounded by the rate limiter.
const (
	ActionBookingCreate = "booking_create"
	ActionPaymentInit   = "payment_init"
)

// RateLimitService bounds attempt frequency for sensitive actions using a
// shared relational store, so every server instance counts against the
// same window.
type RateLimitService struct {
	db  database.DB
	cfg config.RateLimitConfig
}

// NewRateLimitService creates a new RateLimitService.
func NewRateLimitService(db database.DB, cfg config.RateLimitConfig) *RateLimitService {
	return &RateLimitService{db: db, cfg: cfg}
}

// RateLimitError reports an exceeded limit and when to retry.
type RateLimitError struct {
	Action     string
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many %s attempts, retry after %s", e.Action, e.RetryAfter.Format(time.RFC3339))
}

// Check returns a RateLimitError when the identifier has exceeded the
// rolling window for the action.
func (s *RateLimitService) Check(identifier, action string) error {
	if identifier == "" {
		return nil
	}
	count, lastAttempt, err := s.attemptCount(identifier, action)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count >= s.cfg.MaxAttempts {
		return &RateLimitError{
			Action:     action,
			RetryAfter: lastAttempt.Add(s.cfg.Window),
		}
	}
	return nil
}

// Record registers one attempt for the identifier and action.
func (s *RateLimitService) Record(identifier, action string) error {
	if identifier == "" {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO rate_limits (identifier, action, created_at)
		VALUES ($1, $2, NOW())`, identifier, action)
	if err != nil {
		return fmt.Errorf("failed to record rate limit attempt: %w", err)
	}
	return nil
}

func (s *RateLimitService) attemptCount(identifier, action string) (int, time.Time, error) {
	windowStart := time.Now().Add(-s.cfg.Window)

	var count int
	var lastAttempt time.Time
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM rate_limits
		WHERE identifier = $1 AND action = $2 AND created_at > $3`,
		identifier, action, windowStart,
	).Scan(&count, &lastAttempt)
	if err != nil && err != sql.ErrNoRows {
		return 0, time.Time{}, err
	}
	return count, lastAttempt, nil
}

// Prune deletes records older than the rolling window. Called by the
// sweep; returns the number of rows removed.
func (s *RateLimitService) Prune() (int64, error) {
	cutoff := time.Now().Add(-s.cfg.Window)
	result, err := s.db.Exec(`DELETE FROM rate_limits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}
