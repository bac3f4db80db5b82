package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
)

// WaitlistService records interest in trips. Entries are never promoted to
// bookings automatically.
type WaitlistService struct {
	waitlist WaitlistStore
	trips    TripStore
	logger   *logrus.Logger
}

// NewWaitlistService creates a new WaitlistService
func NewWaitlistService(waitlist WaitlistStore, trips TripStore, logger *logrus.Logger) *WaitlistService {
	return &WaitlistService{waitlist: waitlist, trips: trips, logger: logger}
}

// Join adds the principal to a bookable trip's waitlist
func (s *WaitlistService) Join(ctx context.Context, principal models.Principal, tripID string, req *models.JoinWaitlistRequest) (*models.WaitlistEntry, error) {
	if req.SeatCount < 1 {
		return nil, newError(KindValidation, "seatCount must be at least 1")
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "trip %s not found", tripID)
		}
		return nil, storeError("failed to load trip", err)
	}
	if !trip.IsBookable() {
		return nil, newError(KindTripUnavailable, "trip %s is %s", trip.ID, trip.Status)
	}

	entry := &models.WaitlistEntry{
		ID:        uuid.New().String(),
		UserID:    principal.UserID,
		TripID:    tripID,
		SeatCount: req.SeatCount,
	}
	if err := s.waitlist.Create(ctx, entry); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, &Error{Kind: KindConflict, Message: "already on the waitlist for this trip", Err: err}
		}
		return nil, storeError("failed to join waitlist", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":    tripID,
		"user_id":    principal.UserID,
		"seat_count": req.SeatCount,
	}).Info("Joined waitlist")
	return entry, nil
}

// List returns a trip's waitlist in arrival order
func (s *WaitlistService) List(ctx context.Context, tripID string) ([]models.WaitlistEntry, error) {
	entries, err := s.waitlist.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, storeError("failed to list waitlist", err)
	}
	return entries, nil
}

// Leave removes the principal from a trip's waitlist
func (s *WaitlistService) Leave(ctx context.Context, principal models.Principal, tripID string) error {
	if err := s.waitlist.Delete(ctx, principal.UserID, tripID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return newError(KindNotFound, "not on the waitlist for trip %s", tripID)
		}
		return storeError("failed to leave waitlist", err)
	}
	return nil
}
