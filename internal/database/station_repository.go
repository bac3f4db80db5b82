package database

import (
	"context"
	"fmt"

	"github.com/smarttransit/busline-backend/internal/models"
)

const stationColumns = `id, code, name, city, latitude, longitude, created_at, updated_at`

// StationRepository handles database operations for stations
type StationRepository struct {
	db DB
}

// NewStationRepository creates a new StationRepository
func NewStationRepository(db DB) *StationRepository {
	return &StationRepository{db: db}
}

// Create creates a new station
func (r *StationRepository) Create(ctx context.Context, station *models.Station) error {
	query := `
		INSERT INTO stations (id, code, name, city, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		station.ID, station.Code, station.Name, station.City, station.Latitude, station.Longitude,
	).Scan(&station.CreatedAt, &station.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create station: %w", mapPQError(err))
	}
	return nil
}

// Upsert inserts a station or updates the existing one with the same code.
// The stored ID is written back to station.
func (r *StationRepository) Upsert(ctx context.Context, station *models.Station) error {
	query := `
		INSERT INTO stations (id, code, name, city, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name,
		    city = COALESCE(EXCLUDED.city, stations.city),
		    latitude = EXCLUDED.latitude,
		    longitude = EXCLUDED.longitude,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		station.ID, station.Code, station.Name, station.City, station.Latitude, station.Longitude,
	).Scan(&station.ID, &station.CreatedAt, &station.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", station.Code, mapPQError(err))
	}
	return nil
}

// GetByCode retrieves a station by its unique code
func (r *StationRepository) GetByCode(ctx context.Context, code string) (*models.Station, error) {
	station := &models.Station{}
	err := r.db.GetContext(ctx, station, `SELECT `+stationColumns+` FROM stations WHERE code = $1`, code)
	if err != nil {
		return nil, mapPQError(err)
	}
	return station, nil
}

// List returns all stations ordered by name
func (r *StationRepository) List(ctx context.Context) ([]models.Station, error) {
	stations := []models.Station{}
	if err := r.db.SelectContext(ctx, &stations, `SELECT `+stationColumns+` FROM stations ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	return stations, nil
}
