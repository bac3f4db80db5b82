package models

import (
	"errors"
	"time"
)

// TripStatus represents the lifecycle state of a trip
type TripStatus string

const (
	TripStatusScheduled  TripStatus = "SCHEDULED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// ActiveTripStatuses are the statuses that hold a bus or driver.
var ActiveTripStatuses = []string{string(TripStatusScheduled), string(TripStatusInProgress)}

// IsValid reports whether s is a known trip status
func (s TripStatus) IsValid() bool {
	switch s {
	case TripStatusScheduled, TripStatusInProgress, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// Trip represents one scheduled run of a bus along a route
type Trip struct {
	ID                   string     `json:"id" db:"id"`
	RouteID              string     `json:"routeId" db:"route_id"`
	OriginStationID      string     `json:"originStationId" db:"origin_station_id"`
	DestinationStationID string     `json:"destinationStationId" db:"destination_station_id"`
	BusID                *string    `json:"busId,omitempty" db:"bus_id"`
	DriverID             *string    `json:"driverId,omitempty" db:"driver_id"`
	DepartureTime        time.Time  `json:"departureTime" db:"departure_time"`
	ArrivalTime          time.Time  `json:"arrivalTime" db:"arrival_time"`
	Price                float64    `json:"price" db:"price"`
	Status               TripStatus `json:"status" db:"status"`
	CurrentLatitude      *float64   `json:"currentLatitude,omitempty" db:"current_latitude"`
	CurrentLongitude     *float64   `json:"currentLongitude,omitempty" db:"current_longitude"`
	LocationUpdatedAt    *time.Time `json:"locationUpdatedAt,omitempty" db:"location_updated_at"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsBookable reports whether seats can still be sold on the trip
func (t *Trip) IsBookable() bool {
	return t.Status == TripStatusScheduled || t.Status == TripStatusInProgress
}

// IntervalsOverlap uses closed intervals: a trip ending exactly when another
// departs counts as overlapping.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// TripDetails is a trip joined with its route, stations, bus and driver
type TripDetails struct {
	Trip
	RouteCode       string  `json:"routeCode" db:"route_code"`
	RouteName       string  `json:"routeName" db:"route_name"`
	OriginName      string  `json:"originName" db:"origin_name"`
	DestinationName string  `json:"destinationName" db:"destination_name"`
	BusPlateNumber  *string `json:"busPlateNumber,omitempty" db:"bus_plate_number"`
	BusCapacity     *int    `json:"busCapacity,omitempty" db:"bus_capacity"`
	DriverName      *string `json:"driverName,omitempty" db:"driver_name"`
	SeatCount       int     `json:"seatCount" db:"seat_count"`
	AvailableSeats  int     `json:"availableSeats" db:"available_seats"`
}

// TripFilter holds the optional filters for listing trips
type TripFilter struct {
	RouteID string
	Status  TripStatus
	Date    *time.Time
	Limit   int
	Offset  int
}

// CreateTripRequest creates a trip explicitly
type CreateTripRequest struct {
	RouteID       string    `json:"routeId" binding:"required"`
	BusID         *string   `json:"busId"`
	DriverID      *string   `json:"driverId"`
	DepartureTime time.Time `json:"departureTime" binding:"required"`
	ArrivalTime   time.Time `json:"arrivalTime" binding:"required"`
	Price         float64   `json:"price" binding:"gte=0"`
}

// Validate checks request invariants that binding tags cannot express
func (r *CreateTripRequest) Validate() error {
	if r.ArrivalTime.Before(r.DepartureTime) {
		return errors.New("arrivalTime must not be before departureTime")
	}
	return nil
}

// AssignDriverRequest assigns or, with a null driverId, unassigns a driver
type AssignDriverRequest struct {
	DriverID *string `json:"driverId"`
}

// AssignBusRequest assigns a bus to a trip
type AssignBusRequest struct {
	BusID string `json:"busId" binding:"required"`
}

// UpdateTripStatusRequest changes a trip's status
type UpdateTripStatusRequest struct {
	Status TripStatus `json:"status" binding:"required"`
}

// UpdateTripLocationRequest stores the last known coordinates of a trip
type UpdateTripLocationRequest struct {
	Latitude  float64 `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" binding:"gte=-180,lte=180"`
}

// GenerateDailyTripsRequest triggers daily generation for one date (YYYY-MM-DD)
type GenerateDailyTripsRequest struct {
	Date string `json:"date" binding:"required"`
}

// GenerationResult summarises a generateDailyTrips run
type GenerationResult struct {
	Date      string   `json:"date"`
	Generated int      `json:"generated"`
	Trips     []*Trip  `json:"trips"`
	Errors    []string `json:"errors,omitempty"`
}
