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

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Redis seat-map cache configuration
	Redis RedisConfig

	// Trip generation configuration
	Trips TripConfig

	// Loyalty configuration
	Loyalty LoyaltyConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RedisConfig holds the seat-map cache configuration. An empty URL disables caching.
type RedisConfig struct {
	URL     string
	SeatTTL time.Duration
	// RepeatInvalidate is the delay of the second seat-map delete; 0 disables it
	RepeatInvalidate time.Duration
}

// TripConfig holds trip generation settings
type TripConfig struct {
	Timezone               string
	DefaultDurationMinutes int
	SlotToleranceMinutes   int
	GenerationCron         string
	GenerationDaysAhead    int
	GenerationEnabled      bool
}

// LoyaltyConfig holds loyalty point settings
type LoyaltyConfig struct {
	AmountPerPoint  float64
	ReverseOnCancel bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
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
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "smarttransit-busline"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Redis: RedisConfig{
			URL:              getEnv("REDIS_URL", ""),
			SeatTTL:          time.Duration(getEnvAsInt("REDIS_SEAT_TTL_SECONDS", 10)) * time.Second,
			RepeatInvalidate: time.Duration(getEnvAsInt("REDIS_REPEAT_INVALIDATE_MS", 500)) * time.Millisecond,
		},
		Trips: TripConfig{
			Timezone:               getEnv("TRIP_TIMEZONE", "UTC"),
			DefaultDurationMinutes: getEnvAsInt("TRIP_DEFAULT_DURATION_MINUTES", 60),
			SlotToleranceMinutes:   getEnvAsInt("TRIP_SLOT_TOLERANCE_MINUTES", 5),
			GenerationCron:         getEnv("TRIP_GENERATION_CRON", "0 0 2 * * *"),
			GenerationDaysAhead:    getEnvAsInt("TRIP_GENERATION_DAYS_AHEAD", 1),
			GenerationEnabled:      getEnvAsBool("TRIP_GENERATION_ENABLED", true),
		},
		Loyalty: LoyaltyConfig{
			AmountPerPoint:  getEnvAsFloat("LOYALTY_AMOUNT_PER_POINT", 100),
			ReverseOnCancel: getEnvAsBool("LOYALTY_REVERSE_ON_CANCEL", false),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if _, err := time.LoadLocation(c.Trips.Timezone); err != nil {
		return fmt.Errorf("invalid TRIP_TIMEZONE %q: %w", c.Trips.Timezone, err)
	}

	if c.Trips.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("TRIP_DEFAULT_DURATION_MINUTES must be positive")
	}

	if c.Trips.GenerationDaysAhead < 1 {
		return fmt.Errorf("TRIP_GENERATION_DAYS_AHEAD must be at least 1")
	}

	if c.Loyalty.AmountPerPoint <= 0 {
		return fmt.Errorf("LOYALTY_AMOUNT_PER_POINT must be positive")
	}

	return nil
}

// Location returns the time zone used for schedule windows.
func (t TripConfig) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
