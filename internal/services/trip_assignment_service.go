package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
)

// AssignDriver assigns a driver to a trip, or unassigns with a nil driverID.
// The driver must be active and free for the trip's whole interval.
func (s *TripService) AssignDriver(ctx context.Context, tripID string, driverID *string) (*models.TripDetails, error) {
	trip, err := s.trip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if driverID == nil {
		if err := s.trips.SetDriver(ctx, trip.ID, nil); err != nil {
			return nil, mapAssignmentError(err, "failed to unassign driver")
		}
		s.logger.WithField("trip_id", trip.ID).Info("Driver unassigned")
		return s.details(ctx, trip.ID)
	}

	driver, err := s.activeDriver(ctx, *driverID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDriverConflicts(ctx, driver.ID, trip); err != nil {
		return nil, err
	}

	if err := s.trips.SetDriver(ctx, trip.ID, &driver.ID); err != nil {
		return nil, mapAssignmentError(err, "failed to assign driver")
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":   trip.ID,
		"driver_id": driver.ID,
	}).Info("Driver assigned")

	return s.details(ctx, trip.ID)
}

// AssignBus assigns a bus to a trip. When the bus's capacity differs from the
// trip's seat count the seats are regenerated, which is refused while any
// seat is occupied.
func (s *TripService) AssignBus(ctx context.Context, tripID, busID string) (*models.TripDetails, error) {
	trip, err := s.details(ctx, tripID)
	if err != nil {
		return nil, err
	}

	bus, err := s.activeBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBusConflicts(ctx, bus.ID, &trip.Trip); err != nil {
		return nil, err
	}

	regenerate := bus.Capacity != trip.SeatCount
	if err := s.trips.SetBus(ctx, trip.ID, bus.ID, bus.Capacity, regenerate); err != nil {
		if errors.Is(err, database.ErrSeatsOccupied) {
			return nil, &Error{
				Kind:    KindActiveBookings,
				Message: "trip has active bookings; cancel them before changing to a bus with a different capacity",
				Err:     err,
			}
		}
		return nil, mapAssignmentError(err, "failed to assign bus")
	}
	if regenerate {
		s.invalidateSeats(ctx, trip.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"bus_id":      bus.ID,
		"capacity":    bus.Capacity,
		"regenerated": regenerate,
	}).Info("Bus assigned")

	return s.details(ctx, trip.ID)
}

func (s *TripService) activeDriver(ctx context.Context, driverID string) (*models.Driver, error) {
	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "driver %s not found", driverID)
		}
		return nil, storeError("failed to load driver", err)
	}
	if !driver.IsActive {
		return nil, newError(KindDriverInactive, "driver %s is inactive", driverID)
	}
	return driver, nil
}

func (s *TripService) activeBus(ctx context.Context, busID string) (*models.Bus, error) {
	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "bus %s not found", busID)
		}
		return nil, storeError("failed to load bus", err)
	}
	if !bus.IsActive {
		return nil, newError(KindBusInactive, "bus %s is inactive", busID)
	}
	return bus, nil
}

func (s *TripService) checkDriverConflicts(ctx context.Context, driverID string, trip *models.Trip) error {
	count, err := s.trips.CountDriverConflicts(ctx, driverID, trip.ID, trip.DepartureTime, trip.ArrivalTime)
	if err != nil {
		return storeError("failed to check driver schedule", err)
	}
	if count > 0 {
		return newError(KindSchedulingConflict, "driver %s is already assigned to an overlapping trip", driverID)
	}
	return nil
}

func (s *TripService) checkBusConflicts(ctx context.Context, busID string, trip *models.Trip) error {
	count, err := s.trips.CountBusConflicts(ctx, busID, trip.ID, trip.DepartureTime, trip.ArrivalTime)
	if err != nil {
		return storeError("failed to check bus schedule", err)
	}
	if count > 0 {
		return newError(KindSchedulingConflict, "bus %s is already assigned to an overlapping trip", busID)
	}
	return nil
}

func (s *TripService) invalidateSeats(ctx context.Context, tripID string) {
	if err := s.seatCache.Invalidate(ctx, tripID); err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("Seat cache invalidation failed")
	}
}

// mapAssignmentError converts store errors raised while writing trips
func mapAssignmentError(err error, message string) error {
	switch {
	case errors.Is(err, database.ErrSchedulingConflict):
		return &Error{Kind: KindSchedulingConflict, Message: "bus or driver is already assigned to an overlapping trip", Err: err}
	case errors.Is(err, database.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "trip not found", Err: err}
	case errors.Is(err, database.ErrInvalidReference):
		return &Error{Kind: KindNotFound, Message: "referenced route, station, bus or driver not found", Err: err}
	}
	return storeError(message, err)
}
