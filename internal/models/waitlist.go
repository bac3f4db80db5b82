package models

import "time"

// WaitlistEntry is a request for seats on a trip that could not be booked directly
type WaitlistEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	TripID    string    `json:"tripId" db:"trip_id"`
	SeatCount int       `json:"seatCount" db:"seat_count"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// JoinWaitlistRequest is the body of POST /trips/:id/waitlist
type JoinWaitlistRequest struct {
	SeatCount int `json:"seatCount" binding:"required,min=1"`
}
