package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Payment   PaymentConfig
	Booking   BookingConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds bearer-token validation configuration. Tokens are issued
// by the auth service; this backend only validates them.
type JWTConfig struct {
	Secret string
}

// PaymentConfig holds payment gateway configuration. WebhookSecret signs
// inbound webhook bodies; SecretKey authenticates outbound API calls.
type PaymentConfig struct {
	BaseURL        string
	SecretKey      string
	WebhookSecret  string
	CallbackURL    string
	RequestTimeout time.Duration
}

// BookingConfig holds booking-flow configuration.
type BookingConfig struct {
	HoldTimeout        time.Duration // how long a PENDING booking keeps its seats
	MaxSeatsPerBooking int
	SeatLayout         string // "front_plus_row" or "grid"
	ReferencePrefix    string
}

// RateLimitConfig bounds attempt frequency for sensitive actions.
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// CORSConfig holds CORS-related configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables, with a .env file
// for local development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Payment: PaymentConfig{
			BaseURL:        getEnv("PAYMENT_BASE_URL", "https://api.paystack.co"),
			SecretKey:      getEnv("PAYMENT_SECRET_KEY", ""),
			WebhookSecret:  getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			CallbackURL:    getEnv("PAYMENT_CALLBACK_URL", ""),
			RequestTimeout: getEnvDuration("PAYMENT_REQUEST_TIMEOUT", 15*time.Second),
		},
		Booking: BookingConfig{
			HoldTimeout:        getEnvDuration("BOOKING_HOLD_TIMEOUT", 15*time.Minute),
			MaxSeatsPerBooking: getEnvInt("BOOKING_MAX_SEATS", 6),
			SeatLayout:         getEnv("SEAT_LAYOUT", "front_plus_row"),
			ReferencePrefix:    getEnv("BOOKING_REFERENCE_PREFIX", "TRP"),
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: getEnvInt("RATE_LIMIT_MAX_ATTEMPTS", 10),
			Window:      getEnvDuration("RATE_LIMIT_WINDOW", 10*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Server.Environment == "production" {
		if c.Payment.SecretKey == "" {
			return fmt.Errorf("PAYMENT_SECRET_KEY is required in production")
		}
		if c.Payment.WebhookSecret == "" {
			return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required in production")
		}
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	if c.Booking.SeatLayout != "front_plus_row" && c.Booking.SeatLayout != "grid" {
		return fmt.Errorf("SEAT_LAYOUT must be front_plus_row or grid, got %q", c.Booking.SeatLayout)
	}
	if c.Booking.MaxSeatsPerBooking < 1 {
		return fmt.Errorf("BOOKING_MAX_SEATS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
