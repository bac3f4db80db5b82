package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/config"
	"github.com/smarttransit/busline-backend/internal/models"
)

// TripGeneratorService generates a day's trips from route schedules
type TripGeneratorService struct {
	routes  RouteStore
	trips   TripStore
	buses   BusStore
	drivers DriverStore
	cfg     config.TripConfig
	logger  *logrus.Logger
}

// NewTripGeneratorService creates a new TripGeneratorService
func NewTripGeneratorService(
	routes RouteStore,
	trips TripStore,
	buses BusStore,
	drivers DriverStore,
	cfg config.TripConfig,
	logger *logrus.Logger,
) *TripGeneratorService {
	return &TripGeneratorService{
		routes:  routes,
		trips:   trips,
		buses:   buses,
		drivers: drivers,
		cfg:     cfg,
		logger:  logger,
	}
}

// GenerateDailyTrips creates the trips of every active route schedule for
// date. Failures of one route or slot are collected in the result and do not
// stop the others.
func (s *TripGeneratorService) GenerateDailyTrips(ctx context.Context, date time.Time) (*models.GenerationResult, error) {
	loc := s.cfg.Location()
	y, m, d := date.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	routes, err := s.routes.ListScheduled(ctx)
	if err != nil {
		return nil, storeError("failed to load route schedules", err)
	}

	result := &models.GenerationResult{
		Date:  day.Format("2006-01-02"),
		Trips: []*models.Trip{},
	}
	for _, route := range routes {
		s.generateForRoute(ctx, route, day, result)
	}

	s.logger.WithFields(logrus.Fields{
		"date":      result.Date,
		"routes":    len(routes),
		"generated": result.Generated,
		"errors":    len(result.Errors),
	}).Info("Daily trip generation finished")

	return result, nil
}

func (s *TripGeneratorService) generateForRoute(ctx context.Context, route *models.RouteDetails, day time.Time, result *models.GenerationResult) {
	fail := func(format string, args ...interface{}) {
		msg := fmt.Sprintf("route %s: %s", route.Code, fmt.Sprintf(format, args...))
		result.Errors = append(result.Errors, msg)
		s.logger.WithField("route_id", route.ID).Warn(msg)
	}

	schedule := route.Schedule
	if schedule == nil {
		fail("no active schedule")
		return
	}
	origin, ok := route.Origin()
	if !ok {
		fail("no stations")
		return
	}
	destination, _ := route.Destination()

	start, end, err := schedule.Window(day, day.Location())
	if err != nil {
		fail("%v", err)
		return
	}
	interval := time.Duration(schedule.IntervalMinutes) * time.Minute
	if interval <= 0 {
		fail("interval must be positive")
		return
	}
	duration := route.Duration(time.Duration(s.cfg.DefaultDurationMinutes) * time.Minute)
	tolerance := time.Duration(s.cfg.SlotToleranceMinutes) * time.Minute

	existing, err := s.trips.DepartureTimes(ctx, route.ID, start.Add(-tolerance), end.Add(tolerance))
	if err != nil {
		fail("failed to load existing trips: %v", err)
		return
	}
	slots := PendingSlots(models.Slots(start, end, interval), existing, tolerance)
	if len(slots) == 0 {
		return
	}

	// pools must be free for the whole run, including the last trip's arrival
	windowEnd := end.Add(duration)
	buses, err := s.buses.ListAvailable(ctx, start, windowEnd)
	if err != nil {
		fail("failed to load available buses: %v", err)
		return
	}
	drivers, err := s.drivers.ListAvailable(ctx, start, windowEnd)
	if err != nil {
		fail("failed to load available drivers: %v", err)
		return
	}
	if len(buses) == 0 {
		fail("no available buses")
		return
	}
	if len(drivers) == 0 {
		fail("no available drivers")
		return
	}

	for i, departure := range slots {
		bus := buses[i%len(buses)]
		driver := drivers[i%len(drivers)]

		trip := &models.Trip{
			ID:                   uuid.New().String(),
			RouteID:              route.ID,
			OriginStationID:      origin.StationID,
			DestinationStationID: destination.StationID,
			BusID:                &bus.ID,
			DriverID:             &driver.ID,
			DepartureTime:        departure,
			ArrivalTime:          departure.Add(duration),
			Price:                schedule.Price,
			Status:               models.TripStatusScheduled,
		}
		if err := s.trips.CreateWithSeats(ctx, trip, bus.Capacity); err != nil {
			fail("slot %s: %v", departure.Format("15:04"), err)
			continue
		}

		result.Trips = append(result.Trips, trip)
		result.Generated++
	}
}

// PendingSlots drops the slots that already have a departure within tolerance
func PendingSlots(slots, existing []time.Time, tolerance time.Duration) []time.Time {
	var pending []time.Time
	for _, slot := range slots {
		taken := false
		for _, dep := range existing {
			diff := dep.Sub(slot)
			if diff < 0 {
				diff = -diff
			}
			if diff <= tolerance {
				taken = true
				break
			}
		}
		if !taken {
			pending = append(pending, slot)
		}
	}
	return pending
}
