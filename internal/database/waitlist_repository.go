package database

import (
	"context"
	"fmt"

	"github.com/smarttransit/busline-backend/internal/models"
)

// WaitlistRepository handles database operations for waitlist entries
type WaitlistRepository struct {
	db DB
}

// NewWaitlistRepository creates a new WaitlistRepository
func NewWaitlistRepository(db DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Create adds an entry; a second entry for the same user and trip returns ErrDuplicate
func (r *WaitlistRepository) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (id, user_id, trip_id, seat_count)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query, entry.ID, entry.UserID, entry.TripID, entry.SeatCount).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to join waitlist: %w", mapPQError(err))
	}
	return nil
}

// ListByTrip returns a trip's waitlist in arrival order
func (r *WaitlistRepository) ListByTrip(ctx context.Context, tripID string) ([]models.WaitlistEntry, error) {
	query := `
		SELECT id, user_id, trip_id, seat_count, created_at
		FROM waitlist_entries
		WHERE trip_id = $1
		ORDER BY created_at
	`
	entries := []models.WaitlistEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	return entries, nil
}

// Delete removes the user's entry for a trip
func (r *WaitlistRepository) Delete(ctx context.Context, userID, tripID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE user_id = $1 AND trip_id = $2`, userID, tripID)
	if err != nil {
		return fmt.Errorf("failed to leave waitlist: %w", err)
	}
	return expectRows(res, 1)
}
