package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/cache"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
)

const (
	defaultTripPageSize = 100
	maxTripPageSize     = 500
)

// TripService creates trips and assigns buses and drivers to them
type TripService struct {
	trips     TripStore
	buses     BusStore
	drivers   DriverStore
	routes    RouteStore
	seatCache cache.SeatCache
	logger    *logrus.Logger
}

// NewTripService creates a new TripService
func NewTripService(
	trips TripStore,
	buses BusStore,
	drivers DriverStore,
	routes RouteStore,
	seatCache cache.SeatCache,
	logger *logrus.Logger,
) *TripService {
	if seatCache == nil {
		seatCache = cache.NoopSeatCache{}
	}
	return &TripService{
		trips:     trips,
		buses:     buses,
		drivers:   drivers,
		routes:    routes,
		seatCache: seatCache,
		logger:    logger,
	}
}

// CreateTrip creates a SCHEDULED trip on a route. When a bus is given the
// trip's seats are created at the bus's capacity.
func (s *TripService) CreateTrip(ctx context.Context, req *models.CreateTripRequest) (*models.TripDetails, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	route, err := s.routes.GetDetails(ctx, req.RouteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "route %s not found", req.RouteID)
		}
		return nil, storeError("failed to load route", err)
	}
	origin, ok := route.Origin()
	if !ok {
		return nil, newError(KindValidation, "route %s has no stations", route.Code)
	}
	destination, _ := route.Destination()

	trip := &models.Trip{
		ID:                   uuid.New().String(),
		RouteID:              route.ID,
		OriginStationID:      origin.StationID,
		DestinationStationID: destination.StationID,
		DepartureTime:        req.DepartureTime,
		ArrivalTime:          req.ArrivalTime,
		Price:                req.Price,
		Status:               models.TripStatusScheduled,
	}

	capacity := 0
	if req.BusID != nil {
		bus, err := s.activeBus(ctx, *req.BusID)
		if err != nil {
			return nil, err
		}
		if err := s.checkBusConflicts(ctx, bus.ID, trip); err != nil {
			return nil, err
		}
		trip.BusID = &bus.ID
		capacity = bus.Capacity
	}
	if req.DriverID != nil {
		driver, err := s.activeDriver(ctx, *req.DriverID)
		if err != nil {
			return nil, err
		}
		if err := s.checkDriverConflicts(ctx, driver.ID, trip); err != nil {
			return nil, err
		}
		trip.DriverID = &driver.ID
	}

	if err := s.trips.CreateWithSeats(ctx, trip, capacity); err != nil {
		return nil, mapAssignmentError(err, "failed to create trip")
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":   trip.ID,
		"route_id":  trip.RouteID,
		"departure": trip.DepartureTime,
		"seats":     capacity,
	}).Info("Trip created")

	return s.details(ctx, trip.ID)
}

// GetTrip returns a trip with its route, bus, driver and seat counts
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*models.TripDetails, error) {
	return s.details(ctx, tripID)
}

// ListTrips returns trips matching the filter
func (s *TripService) ListTrips(ctx context.Context, filter models.TripFilter) ([]models.TripDetails, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, newError(KindValidation, "invalid trip status: %s", filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultTripPageSize
	}
	if filter.Limit > maxTripPageSize {
		filter.Limit = maxTripPageSize
	}

	trips, err := s.trips.List(ctx, filter)
	if err != nil {
		return nil, storeError("failed to list trips", err)
	}
	return trips, nil
}

// UpdateStatus moves a trip to a new status. COMPLETED and CANCELLED are final.
func (s *TripService) UpdateStatus(ctx context.Context, tripID string, status models.TripStatus) (*models.TripDetails, error) {
	if !status.IsValid() {
		return nil, newError(KindValidation, "invalid trip status: %s", status)
	}

	trip, err := s.trip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status == status {
		return s.details(ctx, tripID)
	}
	if trip.Status == models.TripStatusCompleted || trip.Status == models.TripStatusCancelled {
		return nil, newError(KindValidation, "trip %s is already %s", tripID, trip.Status)
	}

	if err := s.trips.UpdateStatus(ctx, tripID, status); err != nil {
		return nil, mapAssignmentError(err, "failed to update trip status")
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id": tripID,
		"from":    trip.Status,
		"to":      status,
	}).Info("Trip status updated")

	return s.details(ctx, tripID)
}

// UpdateLocation stores the last known position of a running or scheduled trip
func (s *TripService) UpdateLocation(ctx context.Context, tripID string, req *models.UpdateTripLocationRequest) (*models.TripDetails, error) {
	trip, err := s.trip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsBookable() {
		return nil, newError(KindTripUnavailable, "trip %s is %s", tripID, trip.Status)
	}

	if err := s.trips.UpdateLocation(ctx, tripID, req.Latitude, req.Longitude); err != nil {
		return nil, mapAssignmentError(err, "failed to update trip location")
	}
	return s.details(ctx, tripID)
}

func (s *TripService) trip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "trip %s not found", tripID)
		}
		return nil, storeError("failed to load trip", err)
	}
	return trip, nil
}

func (s *TripService) details(ctx context.Context, tripID string) (*models.TripDetails, error) {
	trip, err := s.trips.GetDetails(ctx, tripID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "trip %s not found", tripID)
		}
		return nil, storeError("failed to load trip", err)
	}
	return trip, nil
}
