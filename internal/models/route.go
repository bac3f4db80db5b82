package models

import (
	"fmt"
	"time"
)

// Route is a named path through an ordered list of stations
type Route struct {
	ID              string    `json:"id" db:"id"`
	Code            string    `json:"code" db:"code"`
	Name            string    `json:"name" db:"name"`
	DistanceKm      *float64  `json:"distanceKm,omitempty" db:"distance_km"`
	DurationMinutes *int      `json:"durationMinutes,omitempty" db:"duration_minutes"`
	IsActive        bool      `json:"isActive" db:"is_active"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// Duration returns the route's travel time, or fallback when unset
func (r *Route) Duration(fallback time.Duration) time.Duration {
	if r.DurationMinutes == nil || *r.DurationMinutes <= 0 {
		return fallback
	}
	return time.Duration(*r.DurationMinutes) * time.Minute
}

// RouteStation is one stop of a route, joined with the station's name
type RouteStation struct {
	ID          string `json:"id" db:"id"`
	RouteID     string `json:"routeId" db:"route_id"`
	StationID   string `json:"stationId" db:"station_id"`
	StopOrder   int    `json:"stopOrder" db:"stop_order"`
	StationCode string `json:"stationCode" db:"station_code"`
	StationName string `json:"stationName" db:"station_name"`
}

// RouteSchedule is the recurring template used to generate a route's trips
type RouteSchedule struct {
	ID              string    `json:"id" db:"id"`
	RouteID         string    `json:"routeId" db:"route_id"`
	StartTime       string    `json:"startTime" db:"start_time"` // HH:MM
	EndTime         string    `json:"endTime" db:"end_time"`     // HH:MM
	IntervalMinutes int       `json:"intervalMinutes" db:"interval_minutes"`
	Price           float64   `json:"price" db:"price"`
	IsActive        bool      `json:"isActive" db:"is_active"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// Window applies the schedule's time-of-day bounds to date in loc
func (s *RouteSchedule) Window(date time.Time, loc *time.Location) (time.Time, time.Time, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q: %w", s.EndTime, err)
	}

	y, m, d := date.Date()
	windowStart := time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, loc)
	windowEnd := time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, loc)
	if windowEnd.Before(windowStart) {
		return time.Time{}, time.Time{}, fmt.Errorf("end time %s is before start time %s", s.EndTime, s.StartTime)
	}
	return windowStart, windowEnd, nil
}

// Slots walks [start, end] in interval steps, end inclusive
func Slots(start, end time.Time, interval time.Duration) []time.Time {
	if interval <= 0 || end.Before(start) {
		return nil
	}
	var slots []time.Time
	for t := start; !t.After(end); t = t.Add(interval) {
		slots = append(slots, t)
	}
	return slots
}

// ParseClock parses an "HH:MM" time of day
func ParseClock(v string) (time.Time, error) {
	return time.Parse("15:04", v)
}

// RouteDetails is a route with its ordered stations and schedule
type RouteDetails struct {
	Route
	Stations []RouteStation `json:"stations"`
	Schedule *RouteSchedule `json:"schedule,omitempty"`
}

// Origin returns the first station of the route
func (r *RouteDetails) Origin() (RouteStation, bool) {
	if len(r.Stations) == 0 {
		return RouteStation{}, false
	}
	return r.Stations[0], true
}

// Destination returns the last station of the route
func (r *RouteDetails) Destination() (RouteStation, bool) {
	if len(r.Stations) == 0 {
		return RouteStation{}, false
	}
	return r.Stations[len(r.Stations)-1], true
}

// CreateRouteRequest creates a route with its ordered station codes
type CreateRouteRequest struct {
	Code            string   `json:"code" binding:"required"`
	Name            string   `json:"name" binding:"required"`
	DistanceKm      *float64 `json:"distanceKm" binding:"omitempty,gte=0"`
	DurationMinutes *int     `json:"durationMinutes" binding:"omitempty,min=1"`
	StationCodes    []string `json:"stationCodes" binding:"required,min=2,dive,required"`
}

// UpsertScheduleRequest creates or replaces a route's schedule
type UpsertScheduleRequest struct {
	StartTime       string  `json:"startTime" binding:"required"`
	EndTime         string  `json:"endTime" binding:"required"`
	IntervalMinutes int     `json:"intervalMinutes" binding:"required,min=1"`
	Price           float64 `json:"price" binding:"gte=0"`
	IsActive        *bool   `json:"isActive"`
}

// Validate checks the clock strings and their order
func (r *UpsertScheduleRequest) Validate() error {
	start, err := ParseClock(r.StartTime)
	if err != nil {
		return fmt.Errorf("startTime must be HH:MM")
	}
	end, err := ParseClock(r.EndTime)
	if err != nil {
		return fmt.Errorf("endTime must be HH:MM")
	}
	if end.Before(start) {
		return fmt.Errorf("endTime must not be before startTime")
	}
	return nil
}

// GTFSImportResult summarises a GTFS static feed import
type GTFSImportResult struct {
	Stations int      `json:"stations"`
	Routes   int      `json:"routes"`
	Skipped  []string `json:"skipped,omitempty"`
}
