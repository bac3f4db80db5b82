package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/busline-backend/internal/models"
)

const tripColumns = `t.id, t.route_id, t.origin_station_id, t.destination_station_id, t.bus_id, t.driver_id,
	t.departure_time, t.arrival_time, t.price, t.status, t.current_latitude, t.current_longitude,
	t.location_updated_at, t.created_at, t.updated_at`

const tripDetailsQuery = `
	SELECT ` + tripColumns + `,
	       r.code AS route_code, r.name AS route_name,
	       o.name AS origin_name, d.name AS destination_name,
	       b.plate_number AS bus_plate_number, b.capacity AS bus_capacity,
	       dr.full_name AS driver_name,
	       (SELECT COUNT(*) FROM seats s WHERE s.trip_id = t.id) AS seat_count,
	       (SELECT COUNT(*) FROM seats s WHERE s.trip_id = t.id AND s.status = 'AVAILABLE') AS available_seats
	FROM trips t
	JOIN routes r ON r.id = t.route_id
	JOIN stations o ON o.id = t.origin_station_id
	JOIN stations d ON d.id = t.destination_station_id
	LEFT JOIN buses b ON b.id = t.bus_id
	LEFT JOIN drivers dr ON dr.id = t.driver_id
`

// TripRepository handles database operations for trips and their seat sets
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

// CreateWithSeats inserts a trip and its seats "1".."capacity" in one transaction
func (r *TripRepository) CreateWithSeats(ctx context.Context, trip *models.Trip, capacity int) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO trips (
				id, route_id, origin_station_id, destination_station_id, bus_id, driver_id,
				departure_time, arrival_time, price, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			trip.ID, trip.RouteID, trip.OriginStationID, trip.DestinationStationID, trip.BusID, trip.DriverID,
			trip.DepartureTime, trip.ArrivalTime, trip.Price, trip.Status,
		).Scan(&trip.CreatedAt, &trip.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create trip: %w", mapPQError(err))
		}

		return insertSeats(ctx, tx, trip.ID, capacity)
	})
}

func insertSeats(ctx context.Context, tx *sqlx.Tx, tripID string, capacity int) error {
	numbers := models.SeatNumbers(capacity)
	if len(numbers) == 0 {
		return nil
	}
	query := `
		INSERT INTO seats (trip_id, seat_number, status)
		SELECT $1, n, 'AVAILABLE' FROM unnest($2::text[]) AS n
	`
	if _, err := tx.ExecContext(ctx, query, tripID, pq.Array(numbers)); err != nil {
		return fmt.Errorf("failed to create seats: %w", mapPQError(err))
	}
	return nil
}

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	if err := r.db.GetContext(ctx, trip, `SELECT `+tripColumns+` FROM trips t WHERE t.id = $1`, tripID); err != nil {
		return nil, mapPQError(err)
	}
	return trip, nil
}

// GetDetails retrieves a trip joined with route, stations, bus and driver
func (r *TripRepository) GetDetails(ctx context.Context, tripID string) (*models.TripDetails, error) {
	trip := &models.TripDetails{}
	if err := r.db.GetContext(ctx, trip, tripDetailsQuery+` WHERE t.id = $1`, tripID); err != nil {
		return nil, mapPQError(err)
	}
	return trip, nil
}

// List returns trips matching the filter ordered by departure time
func (r *TripRepository) List(ctx context.Context, filter models.TripFilter) ([]models.TripDetails, error) {
	query := tripDetailsQuery + ` WHERE 1=1`
	args := []interface{}{}

	if filter.RouteID != "" {
		args = append(args, filter.RouteID)
		query += fmt.Sprintf(" AND t.route_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND t.status = $%d", len(args))
	}
	if filter.Date != nil {
		dayStart := *filter.Date
		args = append(args, dayStart, dayStart.AddDate(0, 0, 1))
		query += fmt.Sprintf(" AND t.departure_time >= $%d AND t.departure_time < $%d", len(args)-1, len(args))
	}

	query += ` ORDER BY t.departure_time`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	trips := []models.TripDetails{}
	if err := r.db.SelectContext(ctx, &trips, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

// CountDriverConflicts counts the driver's other active trips overlapping [start, end]
func (r *TripRepository) CountDriverConflicts(ctx context.Context, driverID, excludeTripID string, start, end time.Time) (int, error) {
	return r.countConflicts(ctx, "driver_id", driverID, excludeTripID, start, end)
}

// CountBusConflicts counts the bus's other active trips overlapping [start, end]
func (r *TripRepository) CountBusConflicts(ctx context.Context, busID, excludeTripID string, start, end time.Time) (int, error) {
	return r.countConflicts(ctx, "bus_id", busID, excludeTripID, start, end)
}

func (r *TripRepository) countConflicts(ctx context.Context, column, entityID, excludeTripID string, start, end time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM trips
		WHERE ` + column + ` = $1
		  AND id::text <> $2
		  AND status = ANY($3)
		  AND departure_time <= $5
		  AND arrival_time >= $4
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, entityID, excludeTripID, pq.Array(models.ActiveTripStatuses), start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to check %s conflicts: %w", column, err)
	}
	return count, nil
}

// SetDriver assigns or, with a nil driverID, unassigns the trip's driver
func (r *TripRepository) SetDriver(ctx context.Context, tripID string, driverID *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trips SET driver_id = $2, updated_at = NOW() WHERE id = $1`, tripID, driverID)
	if err != nil {
		return fmt.Errorf("failed to assign driver: %w", mapPQError(err))
	}
	return expectRows(res, 1)
}

// SetBus assigns a bus to the trip. When regenerate is true the trip's seat
// set is replaced with capacity fresh seats, which fails with
// ErrSeatsOccupied if any current seat is occupied.
func (r *TripRepository) SetBus(ctx context.Context, tripID, busID string, capacity int, regenerate bool) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if regenerate {
			var statuses []models.SeatStatus
			err := tx.SelectContext(ctx, &statuses,
				`SELECT status FROM seats WHERE trip_id = $1 FOR UPDATE`, tripID)
			if err != nil {
				return fmt.Errorf("failed to lock seats: %w", err)
			}
			for _, status := range statuses {
				if status == models.SeatStatusOccupied {
					return ErrSeatsOccupied
				}
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE trip_id = $1`, tripID); err != nil {
				return fmt.Errorf("failed to delete seats: %w", err)
			}
			if err := insertSeats(ctx, tx, tripID, capacity); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE trips SET bus_id = $2, updated_at = NOW() WHERE id = $1`, tripID, busID)
		if err != nil {
			return fmt.Errorf("failed to assign bus: %w", mapPQError(err))
		}
		return expectRows(res, 1)
	})
}

// UpdateStatus sets the trip status
func (r *TripRepository) UpdateStatus(ctx context.Context, tripID string, status models.TripStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trips SET status = $2, updated_at = NOW() WHERE id = $1`, tripID, status)
	if err != nil {
		return fmt.Errorf("failed to update trip status: %w", mapPQError(err))
	}
	return expectRows(res, 1)
}

// UpdateLocation stores the trip's last known coordinates
func (r *TripRepository) UpdateLocation(ctx context.Context, tripID string, lat, lng float64) error {
	query := `
		UPDATE trips
		SET current_latitude = $2, current_longitude = $3, location_updated_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, tripID, lat, lng)
	if err != nil {
		return fmt.Errorf("failed to update trip location: %w", err)
	}
	return expectRows(res, 1)
}

// DepartureTimes returns the departure times of the route's trips within [from, to]
func (r *TripRepository) DepartureTimes(ctx context.Context, routeID string, from, to time.Time) ([]time.Time, error) {
	var times []time.Time
	query := `
		SELECT departure_time FROM trips
		WHERE route_id = $1 AND departure_time BETWEEN $2 AND $3
		ORDER BY departure_time
	`
	if err := r.db.SelectContext(ctx, &times, query, routeID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list departures: %w", err)
	}
	return times, nil
}

// ListSeats returns the seats of a trip in seat-number order
func (r *TripRepository) ListSeats(ctx context.Context, tripID string) ([]models.Seat, error) {
	query := `
		SELECT id, trip_id, seat_number, status, booking_id, created_at, updated_at
		FROM seats
		WHERE trip_id = $1
		ORDER BY length(seat_number), seat_number
	`
	seats := []models.Seat{}
	if err := r.db.SelectContext(ctx, &seats, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	return seats, nil
}

func expectRows(res interface{ RowsAffected() (int64, error) }, want int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows != want {
		return ErrNotFound
	}
	return nil
}
