package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/smarttransit/busline-backend/internal/models"
)

const busColumns = `id, plate_number, capacity, model, is_active, created_at, updated_at`

// BusRepository handles database operations for buses
type BusRepository struct {
	db DB
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db DB) *BusRepository {
	return &BusRepository{db: db}
}

// Create creates a new bus
func (r *BusRepository) Create(ctx context.Context, bus *models.Bus) error {
	query := `
		INSERT INTO buses (id, plate_number, capacity, model, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		bus.ID, bus.PlateNumber, bus.Capacity, bus.Model, bus.IsActive,
	).Scan(&bus.CreatedAt, &bus.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", mapPQError(err))
	}
	return nil
}

// GetByID retrieves a bus by ID
func (r *BusRepository) GetByID(ctx context.Context, busID string) (*models.Bus, error) {
	bus := &models.Bus{}
	err := r.db.GetContext(ctx, bus, `SELECT `+busColumns+` FROM buses WHERE id = $1`, busID)
	if err != nil {
		return nil, mapPQError(err)
	}
	return bus, nil
}

// List returns all buses ordered by plate number
func (r *BusRepository) List(ctx context.Context, activeOnly bool) ([]models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY plate_number`

	buses := []models.Bus{}
	if err := r.db.SelectContext(ctx, &buses, query); err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, nil
}

// Update applies a partial update to a bus
func (r *BusRepository) Update(ctx context.Context, busID string, req *models.UpdateBusRequest) (*models.Bus, error) {
	query := `
		UPDATE buses
		SET model = COALESCE($2, model),
		    is_active = COALESCE($3, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + busColumns

	bus := &models.Bus{}
	if err := r.db.GetContext(ctx, bus, query, busID, req.Model, req.IsActive); err != nil {
		return nil, mapPQError(err)
	}
	return bus, nil
}

// ListAvailable returns active buses with no active trip overlapping [from, to]
func (r *BusRepository) ListAvailable(ctx context.Context, from, to time.Time) ([]models.Bus, error) {
	query := `
		SELECT ` + busColumns + `
		FROM buses b
		WHERE b.is_active = TRUE
		  AND NOT EXISTS (
		      SELECT 1 FROM trips t
		      WHERE t.bus_id = b.id
		        AND t.status = ANY($1)
		        AND t.departure_time <= $3
		        AND t.arrival_time >= $2
		  )
		ORDER BY b.plate_number
	`

	buses := []models.Bus{}
	if err := r.db.SelectContext(ctx, &buses, query, pq.Array(models.ActiveTripStatuses), from, to); err != nil {
		return nil, fmt.Errorf("failed to list available buses: %w", err)
	}
	return buses, nil
}
