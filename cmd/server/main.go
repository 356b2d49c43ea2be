package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/handlers"
	"github.com/tripline/booking-backend/internal/middleware"
	"github.com/tripline/booking-backend/internal/services"
	"github.com/tripline/booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Infof("Starting Tripline booking backend, version %s (built %s)", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	tripRepo := database.NewTripRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db, logger)

	// Services
	jwtService := jwt.NewService(cfg.JWT.Secret)
	ledger := services.NewSeatLedgerService(tripRepo, bookingRepo, cfg.Booking, logger)
	rateLimits := services.NewRateLimitService(db, cfg.RateLimit)
	bookingService := services.NewBookingService(bookingRepo, tripRepo, paymentRepo, ledger, cfg.Booking, logger)
	gateway := services.NewGatewayService(cfg.Payment, logger)
	paymentService := services.NewPaymentService(paymentRepo, bookingRepo, auditRepo, bookingService, gateway, logger)

	if !gateway.IsConfigured() {
		logger.Warn("Payment gateway credentials not configured - payment initialization will fail")
	}

	// Background sweep: hold expiry, stale payment reconciliation,
	// departure completion, rate-limit pruning.
	sweep := services.NewSweepService(bookingService, paymentService, tripRepo, bookingRepo, rateLimits, logger)
	if err := sweep.Start(); err != nil {
		logger.Fatalf("Failed to start sweep service: %v", err)
	}
	defer sweep.Stop()

	// Handlers
	tripHandler := handlers.NewTripHandler(tripRepo, ledger, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, rateLimits, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, gateway, rateLimits, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/trips/:id", tripHandler.GetTrip)
		v1.GET("/trips/:id/seats", tripHandler.GetSeatAvailability)

		v1.POST("/bookings", bookingHandler.CreateBooking)
		v1.GET("/bookings/:reference", bookingHandler.GetBooking)
		v1.POST("/bookings/:reference/cancel", bookingHandler.CancelBooking)

		v1.POST("/payments/initialize", paymentHandler.InitializePayment)
		v1.GET("/payments/verify/:reference", paymentHandler.VerifyPayment)
		v1.POST("/payments/webhook", paymentHandler.Webhook)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAuth(jwtService), middleware.RequireRole("admin"))
	{
		admin.POST("/trips", tripHandler.CreateTrip)
		admin.GET("/trips/:id", tripHandler.GetTrip)
		admin.PATCH("/trips/:id", tripHandler.UpdateTrip)
		admin.PATCH("/trips/:id/status", tripHandler.UpdateTripStatus)
		admin.DELETE("/trips/:id", tripHandler.DeleteTrip)
		admin.GET("/payments/:reference/audits", paymentHandler.ListPaymentAudits)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Forced shutdown: %v", err)
	}
	logger.Info("Server stopped")
}
