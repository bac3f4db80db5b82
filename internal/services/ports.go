package services

import (
	"context"
	"time"

	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
)

// BookingStore is the booking persistence used by BookingService
type BookingStore interface {
	CreateWithSeats(ctx context.Context, booking *models.Booking, points int) error
	ApplyStatusChange(ctx context.Context, change database.StatusChange) error
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	GetDetails(ctx context.Context, bookingID string) (*models.BookingDetails, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetails, error)
}

// TripStore is the trip persistence used by the booking and trip engines
type TripStore interface {
	CreateWithSeats(ctx context.Context, trip *models.Trip, capacity int) error
	GetByID(ctx context.Context, tripID string) (*models.Trip, error)
	GetDetails(ctx context.Context, tripID string) (*models.TripDetails, error)
	List(ctx context.Context, filter models.TripFilter) ([]models.TripDetails, error)
	CountDriverConflicts(ctx context.Context, driverID, excludeTripID string, start, end time.Time) (int, error)
	CountBusConflicts(ctx context.Context, busID, excludeTripID string, start, end time.Time) (int, error)
	SetDriver(ctx context.Context, tripID string, driverID *string) error
	SetBus(ctx context.Context, tripID, busID string, capacity int, regenerate bool) error
	UpdateStatus(ctx context.Context, tripID string, status models.TripStatus) error
	UpdateLocation(ctx context.Context, tripID string, lat, lng float64) error
	DepartureTimes(ctx context.Context, routeID string, from, to time.Time) ([]time.Time, error)
	ListSeats(ctx context.Context, tripID string) ([]models.Seat, error)
}

// BusStore reads buses for assignment and generation
type BusStore interface {
	GetByID(ctx context.Context, busID string) (*models.Bus, error)
	ListAvailable(ctx context.Context, from, to time.Time) ([]models.Bus, error)
}

// DriverStore reads drivers for assignment and generation
type DriverStore interface {
	GetByID(ctx context.Context, driverID string) (*models.Driver, error)
	ListAvailable(ctx context.Context, from, to time.Time) ([]models.Driver, error)
}

// RouteStore reads routes and their schedules
type RouteStore interface {
	GetDetails(ctx context.Context, routeID string) (*models.RouteDetails, error)
	ListScheduled(ctx context.Context) ([]*models.RouteDetails, error)
}

// WaitlistStore persists waitlist entries
type WaitlistStore interface {
	Create(ctx context.Context, entry *models.WaitlistEntry) error
	ListByTrip(ctx context.Context, tripID string) ([]models.WaitlistEntry, error)
	Delete(ctx context.Context, userID, tripID string) error
}

// LoyaltyStore reads loyalty balances
type LoyaltyStore interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.LoyaltyTransaction, error)
}
