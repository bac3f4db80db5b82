package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/cache"
	"github.com/smarttransit/busline-backend/internal/config"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/handlers"
	"github.com/smarttransit/busline-backend/internal/middleware"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/services"
	"github.com/smarttransit/busline-backend/internal/utils"
	"github.com/smarttransit/busline-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartTransit Bus Line Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Database
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		logger.Info("Applying migrations...")
		if err := database.Migrate(context.Background(), db); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Seat map cache
	var seatCache cache.SeatCache = cache.NoopSeatCache{}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unavailable, seat maps will not be cached")
		} else {
			seatCache = cache.NewRedisSeatCache(redisClient, cfg.Redis.SeatTTL).WithRepeatedInvalidate(cfg.Redis.RepeatInvalidate)
			logger.Info("Seat map cache enabled")
		}
		cancel()
	}

	// Repositories
	bookingRepo := database.NewBookingRepository(db)
	tripRepo := database.NewTripRepository(db)
	busRepo := database.NewBusRepository(db)
	driverRepo := database.NewDriverRepository(db)
	routeRepo := database.NewRouteRepository(db)
	stationRepo := database.NewStationRepository(db)
	waitlistRepo := database.NewWaitlistRepository(db)
	loyaltyRepo := database.NewLoyaltyRepository(db)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	bookingService := services.NewBookingService(bookingRepo, tripRepo, loyaltyRepo, seatCache, cfg.Loyalty, logger)
	tripService := services.NewTripService(tripRepo, busRepo, driverRepo, routeRepo, seatCache, logger)
	waitlistService := services.NewWaitlistService(waitlistRepo, tripRepo, logger)
	generatorService := services.NewTripGeneratorService(routeRepo, tripRepo, busRepo, driverRepo, cfg.Trips, logger)
	gtfsService := services.NewGTFSImportService(stationRepo, routeRepo, logger)

	var cronService *services.CronService
	if cfg.Trips.GenerationEnabled {
		cronService = services.NewCronService(generatorService, cfg.Trips, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	// Handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	tripHandler := handlers.NewTripHandler(tripService, generatorService, waitlistService, cfg.Trips.Location(), logger)
	fleetHandler := handlers.NewFleetHandler(busRepo, driverRepo, logger)
	networkHandler := handlers.NewNetworkHandler(stationRepo, routeRepo, gtfsService, logger)
	var cronRunner handlers.CronRunner
	if cronService != nil {
		cronRunner = cronService
	}
	adminHandler := handlers.NewAdminHandler(cronRunner, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))

	authed := middleware.AuthMiddleware(jwtService, logger)
	can := middleware.RequireCapability

	v1 := router.Group("/api/v1")
	{
		bookings := v1.Group("/bookings", authed, can(models.CapBookSeats))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.PATCH("/:id/cancel", bookingHandler.CancelBooking)
			bookings.GET("/:id/ticket.pdf", bookingHandler.DownloadTicket)
			bookings.PATCH("/:id/status", can(models.CapManageBookings), bookingHandler.UpdateStatus)
			bookings.PATCH("/:id/pay", can(models.CapManageBookings), bookingHandler.MarkPaid)
		}

		v1.GET("/loyalty", authed, can(models.CapBookSeats), bookingHandler.GetLoyalty)

		trips := v1.Group("/trips")
		{
			// Public reads
			trips.GET("", tripHandler.ListTrips)
			trips.GET("/:id", tripHandler.GetTrip)
			trips.GET("/:id/seats", bookingHandler.GetSeatMap)

			trips.POST("/:id/waitlist", authed, can(models.CapBookSeats), tripHandler.JoinWaitlist)
			trips.DELETE("/:id/waitlist", authed, can(models.CapBookSeats), tripHandler.LeaveWaitlist)
			trips.GET("/:id/waitlist", authed, can(models.CapManageBookings), tripHandler.ListWaitlist)

			trips.PATCH("/:id/location", authed, can(models.CapReportLocation), tripHandler.UpdateLocation)

			manage := trips.Group("", authed, can(models.CapManageTrips))
			manage.POST("", tripHandler.CreateTrip)
			manage.POST("/generate-daily", tripHandler.GenerateDaily)
			manage.PATCH("/:id/status", tripHandler.UpdateStatus)
			manage.PATCH("/:id/assign-driver", tripHandler.AssignDriver)
			manage.PATCH("/:id/assign-bus", tripHandler.AssignBus)
		}

		network := v1.Group("", authed, can(models.CapManageNetwork))
		{
			network.POST("/buses", fleetHandler.CreateBus)
			network.GET("/buses", fleetHandler.ListBuses)
			network.GET("/buses/:id", fleetHandler.GetBus)
			network.PATCH("/buses/:id", fleetHandler.UpdateBus)

			network.POST("/drivers", fleetHandler.CreateDriver)
			network.GET("/drivers", fleetHandler.ListDrivers)
			network.GET("/drivers/:id", fleetHandler.GetDriver)
			network.PATCH("/drivers/:id", fleetHandler.UpdateDriver)

			network.POST("/stations", networkHandler.CreateStation)
			network.GET("/stations", networkHandler.ListStations)

			network.POST("/routes", networkHandler.CreateRoute)
			network.GET("/routes", networkHandler.ListRoutes)
			network.POST("/routes/import-gtfs", networkHandler.ImportGTFS)
			network.GET("/routes/:id", networkHandler.GetRoute)
			network.PUT("/routes/:id/schedule", networkHandler.UpsertSchedule)
		}

		admin := v1.Group("/admin", authed, can(models.CapManageTrips))
		{
			admin.POST("/cron/generate-trips", adminHandler.RunGenerateTrips)
			admin.GET("/cron/status", adminHandler.CronStatus)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		logger.Info("Stopping cron service...")
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         utils.GetRealIP(c),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Set by AuthMiddleware on protected routes
		if p, ok := middleware.GetPrincipal(c); ok {
			fields["user_id"] = p.UserID
			fields["role"] = p.Role
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
