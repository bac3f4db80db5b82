package services

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockBookingStore struct{ mock.Mock }

func (m *mockBookingStore) CreateWithSeats(ctx context.Context, booking *models.Booking, points int) error {
	return m.Called(ctx, booking, points).Error(0)
}

func (m *mockBookingStore) ApplyStatusChange(ctx context.Context, change database.StatusChange) error {
	return m.Called(ctx, change).Error(0)
}

func (m *mockBookingStore) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Error(1)
}

func (m *mockBookingStore) GetDetails(ctx context.Context, bookingID string) (*models.BookingDetails, error) {
	args := m.Called(ctx, bookingID)
	details, _ := args.Get(0).(*models.BookingDetails)
	return details, args.Error(1)
}

func (m *mockBookingStore) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetails, error) {
	args := m.Called(ctx, filter)
	bookings, _ := args.Get(0).([]models.BookingDetails)
	return bookings, args.Error(1)
}

type mockTripStore struct{ mock.Mock }

func (m *mockTripStore) CreateWithSeats(ctx context.Context, trip *models.Trip, capacity int) error {
	return m.Called(ctx, trip, capacity).Error(0)
}

func (m *mockTripStore) GetByID(ctx context.Context, tripID string) (*models.Trip, error) {
	args := m.Called(ctx, tripID)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockTripStore) GetDetails(ctx context.Context, tripID string) (*models.TripDetails, error) {
	args := m.Called(ctx, tripID)
	trip, _ := args.Get(0).(*models.TripDetails)
	return trip, args.Error(1)
}

func (m *mockTripStore) List(ctx context.Context, filter models.TripFilter) ([]models.TripDetails, error) {
	args := m.Called(ctx, filter)
	trips, _ := args.Get(0).([]models.TripDetails)
	return trips, args.Error(1)
}

func (m *mockTripStore) CountDriverConflicts(ctx context.Context, driverID, excludeTripID string, start, end time.Time) (int, error) {
	args := m.Called(ctx, driverID, excludeTripID, start, end)
	return args.Int(0), args.Error(1)
}

func (m *mockTripStore) CountBusConflicts(ctx context.Context, busID, excludeTripID string, start, end time.Time) (int, error) {
	args := m.Called(ctx, busID, excludeTripID, start, end)
	return args.Int(0), args.Error(1)
}

func (m *mockTripStore) SetDriver(ctx context.Context, tripID string, driverID *string) error {
	return m.Called(ctx, tripID, driverID).Error(0)
}

func (m *mockTripStore) SetBus(ctx context.Context, tripID, busID string, capacity int, regenerate bool) error {
	return m.Called(ctx, tripID, busID, capacity, regenerate).Error(0)
}

func (m *mockTripStore) UpdateStatus(ctx context.Context, tripID string, status models.TripStatus) error {
	return m.Called(ctx, tripID, status).Error(0)
}

func (m *mockTripStore) UpdateLocation(ctx context.Context, tripID string, lat, lng float64) error {
	return m.Called(ctx, tripID, lat, lng).Error(0)
}

func (m *mockTripStore) DepartureTimes(ctx context.Context, routeID string, from, to time.Time) ([]time.Time, error) {
	args := m.Called(ctx, routeID, from, to)
	times, _ := args.Get(0).([]time.Time)
	return times, args.Error(1)
}

func (m *mockTripStore) ListSeats(ctx context.Context, tripID string) ([]models.Seat, error) {
	args := m.Called(ctx, tripID)
	seats, _ := args.Get(0).([]models.Seat)
	return seats, args.Error(1)
}

type mockBusStore struct{ mock.Mock }

func (m *mockBusStore) GetByID(ctx context.Context, busID string) (*models.Bus, error) {
	args := m.Called(ctx, busID)
	bus, _ := args.Get(0).(*models.Bus)
	return bus, args.Error(1)
}

func (m *mockBusStore) ListAvailable(ctx context.Context, from, to time.Time) ([]models.Bus, error) {
	args := m.Called(ctx, from, to)
	buses, _ := args.Get(0).([]models.Bus)
	return buses, args.Error(1)
}

type mockDriverStore struct{ mock.Mock }

func (m *mockDriverStore) GetByID(ctx context.Context, driverID string) (*models.Driver, error) {
	args := m.Called(ctx, driverID)
	driver, _ := args.Get(0).(*models.Driver)
	return driver, args.Error(1)
}

func (m *mockDriverStore) ListAvailable(ctx context.Context, from, to time.Time) ([]models.Driver, error) {
	args := m.Called(ctx, from, to)
	drivers, _ := args.Get(0).([]models.Driver)
	return drivers, args.Error(1)
}

type mockRouteStore struct{ mock.Mock }

func (m *mockRouteStore) GetDetails(ctx context.Context, routeID string) (*models.RouteDetails, error) {
	args := m.Called(ctx, routeID)
	route, _ := args.Get(0).(*models.RouteDetails)
	return route, args.Error(1)
}

func (m *mockRouteStore) ListScheduled(ctx context.Context) ([]*models.RouteDetails, error) {
	args := m.Called(ctx)
	routes, _ := args.Get(0).([]*models.RouteDetails)
	return routes, args.Error(1)
}

type mockWaitlistStore struct{ mock.Mock }

func (m *mockWaitlistStore) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockWaitlistStore) ListByTrip(ctx context.Context, tripID string) ([]models.WaitlistEntry, error) {
	args := m.Called(ctx, tripID)
	entries, _ := args.Get(0).([]models.WaitlistEntry)
	return entries, args.Error(1)
}

func (m *mockWaitlistStore) Delete(ctx context.Context, userID, tripID string) error {
	return m.Called(ctx, userID, tripID).Error(0)
}

type mockLoyaltyStore struct{ mock.Mock }

func (m *mockLoyaltyStore) GetBalance(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockLoyaltyStore) ListTransactions(ctx context.Context, userID string, limit int) ([]models.LoyaltyTransaction, error) {
	args := m.Called(ctx, userID, limit)
	txs, _ := args.Get(0).([]models.LoyaltyTransaction)
	return txs, args.Error(1)
}

type mockStationUpserter struct{ mock.Mock }

func (m *mockStationUpserter) Upsert(ctx context.Context, station *models.Station) error {
	return m.Called(ctx, station).Error(0)
}

type mockRouteUpserter struct{ mock.Mock }

func (m *mockRouteUpserter) UpsertWithStations(ctx context.Context, route *models.Route, stationIDs []string) error {
	return m.Called(ctx, route, stationIDs).Error(0)
}
