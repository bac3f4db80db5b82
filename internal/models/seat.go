package models

import (
	"strconv"
	"time"
)

// SeatStatus represents the occupancy of a trip seat
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "AVAILABLE"
	SeatStatusOccupied  SeatStatus = "OCCUPIED"
)

// Seat represents one bookable slot on a trip
type Seat struct {
	ID         string     `json:"id" db:"id"`
	TripID     string     `json:"tripId" db:"trip_id"`
	SeatNumber string     `json:"seatNumber" db:"seat_number"`
	Status     SeatStatus `json:"status" db:"status"`
	BookingID  *string    `json:"bookingId,omitempty" db:"booking_id"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsAvailable reports whether the seat can be sold
func (s *Seat) IsAvailable() bool {
	return s.Status == SeatStatusAvailable
}

// SeatMap is a trip's seat set with availability counts
type SeatMap struct {
	TripID    string `json:"tripId"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Occupied  int    `json:"occupied"`
	Seats     []Seat `json:"seats"`
}

// NewSeatMap builds a seat map summary from the trip's seats
func NewSeatMap(tripID string, seats []Seat) *SeatMap {
	m := &SeatMap{TripID: tripID, Total: len(seats), Seats: seats}
	for i := range seats {
		if seats[i].IsAvailable() {
			m.Available++
		} else {
			m.Occupied++
		}
	}
	if m.Seats == nil {
		m.Seats = []Seat{}
	}
	return m
}

// SeatNumbers returns the seat labels "1".."capacity" for a bus
func SeatNumbers(capacity int) []string {
	if capacity <= 0 {
		return nil
	}
	numbers := make([]string, capacity)
	for i := range numbers {
		numbers[i] = strconv.Itoa(i + 1)
	}
	return numbers
}
