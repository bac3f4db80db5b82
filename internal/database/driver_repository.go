package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/smarttransit/busline-backend/internal/models"
)

const driverColumns = `id, full_name, license_number, phone, is_active, created_at, updated_at`

// DriverRepository handles database operations for drivers
type DriverRepository struct {
	db DB
}

// NewDriverRepository creates a new DriverRepository
func NewDriverRepository(db DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// Create creates a new driver
func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	query := `
		INSERT INTO drivers (id, full_name, license_number, phone, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		driver.ID, driver.FullName, driver.LicenseNumber, driver.Phone, driver.IsActive,
	).Scan(&driver.CreatedAt, &driver.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", mapPQError(err))
	}
	return nil
}

// GetByID retrieves a driver by ID
func (r *DriverRepository) GetByID(ctx context.Context, driverID string) (*models.Driver, error) {
	driver := &models.Driver{}
	err := r.db.GetContext(ctx, driver, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, driverID)
	if err != nil {
		return nil, mapPQError(err)
	}
	return driver, nil
}

// List returns all drivers ordered by name
func (r *DriverRepository) List(ctx context.Context, activeOnly bool) ([]models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY full_name`

	drivers := []models.Driver{}
	if err := r.db.SelectContext(ctx, &drivers, query); err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return drivers, nil
}

// Update applies a partial update to a driver
func (r *DriverRepository) Update(ctx context.Context, driverID string, req *models.UpdateDriverRequest) (*models.Driver, error) {
	query := `
		UPDATE drivers
		SET phone = COALESCE($2, phone),
		    is_active = COALESCE($3, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + driverColumns

	driver := &models.Driver{}
	if err := r.db.GetContext(ctx, driver, query, driverID, req.Phone, req.IsActive); err != nil {
		return nil, mapPQError(err)
	}
	return driver, nil
}

// ListAvailable returns active drivers with no active trip overlapping [from, to]
func (r *DriverRepository) ListAvailable(ctx context.Context, from, to time.Time) ([]models.Driver, error) {
	query := `
		SELECT ` + driverColumns + `
		FROM drivers d
		WHERE d.is_active = TRUE
		  AND NOT EXISTS (
		      SELECT 1 FROM trips t
		      WHERE t.driver_id = d.id
		        AND t.status = ANY($1)
		        AND t.departure_time <= $3
		        AND t.arrival_time >= $2
		  )
		ORDER BY d.full_name
	`

	drivers := []models.Driver{}
	if err := r.db.SelectContext(ctx, &drivers, query, pq.Array(models.ActiveTripStatuses), from, to); err != nil {
		return nil, fmt.Errorf("failed to list available drivers: %w", err)
	}
	return drivers, nil
}
