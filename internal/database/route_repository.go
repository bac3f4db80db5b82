package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/busline-backend/internal/models"
)

const (
	routeColumns    = `id, code, name, distance_km, duration_minutes, is_active, created_at, updated_at`
	scheduleColumns = `id, route_id, start_time, end_time, interval_minutes, price, is_active, created_at, updated_at`
)

// RouteRepository handles database operations for routes, their stations and schedules
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// Create inserts a route together with its ordered stations
func (r *RouteRepository) Create(ctx context.Context, route *models.Route, stationIDs []string) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO routes (id, code, name, distance_km, duration_minutes, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			route.ID, route.Code, route.Name, route.DistanceKm, route.DurationMinutes, route.IsActive,
		).Scan(&route.CreatedAt, &route.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create route: %w", mapPQError(err))
		}

		return insertRouteStations(ctx, tx, route.ID, stationIDs)
	})
}

// UpsertWithStations inserts or updates a route by code and replaces its stations.
// The stored ID is written back to route.
func (r *RouteRepository) UpsertWithStations(ctx context.Context, route *models.Route, stationIDs []string) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO routes (id, code, name, distance_km, duration_minutes, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (code) DO UPDATE
			SET name = EXCLUDED.name,
			    duration_minutes = COALESCE(EXCLUDED.duration_minutes, routes.duration_minutes),
			    updated_at = NOW()
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			route.ID, route.Code, route.Name, route.DistanceKm, route.DurationMinutes, route.IsActive,
		).Scan(&route.ID, &route.CreatedAt, &route.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert route %s: %w", route.Code, mapPQError(err))
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM route_stations WHERE route_id = $1`, route.ID); err != nil {
			return fmt.Errorf("failed to clear route stations: %w", err)
		}
		return insertRouteStations(ctx, tx, route.ID, stationIDs)
	})
}

func insertRouteStations(ctx context.Context, tx *sqlx.Tx, routeID string, stationIDs []string) error {
	if len(stationIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO route_stations (route_id, station_id, stop_order)
		SELECT $1, s.station_id::uuid, s.stop_order
		FROM unnest($2::text[]) WITH ORDINALITY AS s(station_id, stop_order)
	`
	if _, err := tx.ExecContext(ctx, query, routeID, pq.Array(stationIDs)); err != nil {
		return fmt.Errorf("failed to insert route stations: %w", mapPQError(err))
	}
	return nil
}

// GetByID retrieves a route by ID
func (r *RouteRepository) GetByID(ctx context.Context, routeID string) (*models.Route, error) {
	route := &models.Route{}
	if err := r.db.GetContext(ctx, route, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, routeID); err != nil {
		return nil, mapPQError(err)
	}
	return route, nil
}

// List returns all routes ordered by code
func (r *RouteRepository) List(ctx context.Context) ([]models.Route, error) {
	routes := []models.Route{}
	if err := r.db.SelectContext(ctx, &routes, `SELECT `+routeColumns+` FROM routes ORDER BY code`); err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

// ListStations returns a route's stations in stop order
func (r *RouteRepository) ListStations(ctx context.Context, routeID string) ([]models.RouteStation, error) {
	query := `
		SELECT rs.id, rs.route_id, rs.station_id, rs.stop_order,
		       s.code AS station_code, s.name AS station_name
		FROM route_stations rs
		JOIN stations s ON s.id = rs.station_id
		WHERE rs.route_id = $1
		ORDER BY rs.stop_order
	`
	stations := []models.RouteStation{}
	if err := r.db.SelectContext(ctx, &stations, query, routeID); err != nil {
		return nil, fmt.Errorf("failed to list route stations: %w", err)
	}
	return stations, nil
}

// GetSchedule retrieves the schedule of a route
func (r *RouteRepository) GetSchedule(ctx context.Context, routeID string) (*models.RouteSchedule, error) {
	schedule := &models.RouteSchedule{}
	err := r.db.GetContext(ctx, schedule, `SELECT `+scheduleColumns+` FROM route_schedules WHERE route_id = $1`, routeID)
	if err != nil {
		return nil, mapPQError(err)
	}
	return schedule, nil
}

// GetDetails retrieves a route with its ordered stations and schedule
func (r *RouteRepository) GetDetails(ctx context.Context, routeID string) (*models.RouteDetails, error) {
	route, err := r.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}

	stations, err := r.ListStations(ctx, routeID)
	if err != nil {
		return nil, err
	}

	details := &models.RouteDetails{Route: *route, Stations: stations}
	schedule, err := r.GetSchedule(ctx, routeID)
	switch {
	case err == nil:
		details.Schedule = schedule
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return details, nil
}

// UpsertSchedule creates or replaces the schedule of a route
func (r *RouteRepository) UpsertSchedule(ctx context.Context, schedule *models.RouteSchedule) error {
	query := `
		INSERT INTO route_schedules (id, route_id, start_time, end_time, interval_minutes, price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (route_id) DO UPDATE
		SET start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    interval_minutes = EXCLUDED.interval_minutes,
		    price = EXCLUDED.price,
		    is_active = EXCLUDED.is_active,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		schedule.ID, schedule.RouteID, schedule.StartTime, schedule.EndTime,
		schedule.IntervalMinutes, schedule.Price, schedule.IsActive,
	).Scan(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert route schedule: %w", mapPQError(err))
	}
	return nil
}

// ListScheduled returns every active route with an active schedule, with stations loaded
func (r *RouteRepository) ListScheduled(ctx context.Context) ([]*models.RouteDetails, error) {
	routes := []models.Route{}
	query := `
		SELECT r.id, r.code, r.name, r.distance_km, r.duration_minutes, r.is_active, r.created_at, r.updated_at
		FROM routes r
		JOIN route_schedules rs ON rs.route_id = r.id
		WHERE r.is_active = TRUE AND rs.is_active = TRUE
		ORDER BY r.code
	`
	if err := r.db.SelectContext(ctx, &routes, query); err != nil {
		return nil, fmt.Errorf("failed to list scheduled routes: %w", err)
	}

	result := make([]*models.RouteDetails, 0, len(routes))
	for i := range routes {
		stations, err := r.ListStations(ctx, routes[i].ID)
		if err != nil {
			return nil, err
		}
		schedule, err := r.GetSchedule(ctx, routes[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load schedule for route %s: %w", routes[i].Code, err)
		}
		result = append(result, &models.RouteDetails{Route: routes[i], Stations: stations, Schedule: schedule})
	}
	return result, nil
}
