package models

import (
	"fmt"
	"math"
	"time"
)

// ============================================================================
// BOOKING STATUSES
// ============================================================================

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// PaymentMethod represents how a booking is paid
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "CASH"
	PaymentMethodCard        PaymentMethod = "CARD"
	PaymentMethodMobileMoney PaymentMethod = "MOBILE_MONEY"
)

// IsValid reports whether m is a known payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobileMoney:
		return true
	}
	return false
}

// PaymentStatus represents the payment state of a booking
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// InitialStatus returns the booking and payment status a new booking starts
// with. Cash is settled at the counter, everything else waits for payment.
func (m PaymentMethod) InitialStatus() (BookingStatus, PaymentStatus) {
	if m == PaymentMethodCash {
		return BookingStatusConfirmed, PaymentStatusPaid
	}
	return BookingStatusPending, PaymentStatusPending
}

// ============================================================================
// BOOKING
// ============================================================================

// Booking is a passenger's reservation of one or more seats on a trip
type Booking struct {
	ID                 string        `json:"id" db:"id"`
	UserID             string        `json:"userId" db:"user_id"`
	TripID             string        `json:"tripId" db:"trip_id"`
	SeatNumbers        StringArray   `json:"seatNumbers" db:"seat_numbers"`
	PassengerName      string        `json:"passengerName" db:"passenger_name"`
	PassengerPhone     string        `json:"passengerPhone" db:"passenger_phone"`
	PassengerEmail     *string       `json:"passengerEmail,omitempty" db:"passenger_email"`
	TotalAmount        float64       `json:"totalAmount" db:"total_amount"`
	Status             BookingStatus `json:"status" db:"status"`
	PaymentMethod      PaymentMethod `json:"paymentMethod" db:"payment_method"`
	PaymentStatus      PaymentStatus `json:"paymentStatus" db:"payment_status"`
	TicketNumber       string        `json:"ticketNumber" db:"ticket_number"`
	QRCode             string        `json:"qrCode" db:"qr_code"`
	SpecialRequests    *string       `json:"specialRequests,omitempty" db:"special_requests"`
	SeatPreference     *string       `json:"seatPreference,omitempty" db:"seat_preference"`
	BookingSource      *string       `json:"bookingSource,omitempty" db:"booking_source"`
	RefundAmount       *float64      `json:"refundAmount,omitempty" db:"refund_amount"`
	CancellationReason *string       `json:"cancellationReason,omitempty" db:"cancellation_reason"`
	CancelledBy        *string       `json:"cancelledBy,omitempty" db:"cancelled_by"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty" db:"cancelled_at"`
	CreatedAt          time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsCancelled reports whether the booking no longer holds seats
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// IsOwnedBy reports whether the booking belongs to userID
func (b *Booking) IsOwnedBy(userID string) bool {
	return b.UserID == userID
}

// BookingDetails is a booking joined with its trip, route, bus and stations
type BookingDetails struct {
	Booking
	DepartureTime   time.Time  `json:"departureTime" db:"departure_time"`
	ArrivalTime     time.Time  `json:"arrivalTime" db:"arrival_time"`
	TripStatus      TripStatus `json:"tripStatus" db:"trip_status"`
	RouteCode       string     `json:"routeCode" db:"route_code"`
	RouteName       string     `json:"routeName" db:"route_name"`
	OriginName      string     `json:"originName" db:"origin_name"`
	DestinationName string     `json:"destinationName" db:"destination_name"`
	BusPlateNumber  *string    `json:"busPlateNumber,omitempty" db:"bus_plate_number"`
}

// BookingFilter holds the optional filters for listing bookings
type BookingFilter struct {
	UserID string
	TripID string
	Status BookingStatus
	Limit  int
	Offset int
}

// ============================================================================
// REQUESTS
// ============================================================================

// CreateBookingRequest is the body of POST /bookings
type CreateBookingRequest struct {
	TripID          string        `json:"tripId" binding:"required"`
	SeatNumbers     []string      `json:"seatNumbers" binding:"required,min=1,dive,required"`
	PassengerName   string        `json:"passengerName" binding:"required"`
	PassengerPhone  string        `json:"passengerPhone" binding:"required"`
	PassengerEmail  *string       `json:"passengerEmail" binding:"omitempty,email"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	SpecialRequests *string       `json:"specialRequests"`
	SeatPreference  *string       `json:"seatPreference"`
}

// Validate checks the request and fills the default payment method
func (r *CreateBookingRequest) Validate() error {
	if r.TripID == "" {
		return fmt.Errorf("tripId is required")
	}
	if len(r.SeatNumbers) == 0 {
		return fmt.Errorf("at least one seat number is required")
	}
	seen := make(map[string]bool, len(r.SeatNumbers))
	for _, n := range r.SeatNumbers {
		if n == "" {
			return fmt.Errorf("seat numbers must not be empty")
		}
		if seen[n] {
			return fmt.Errorf("seat %s requested more than once", n)
		}
		seen[n] = true
	}
	if r.PassengerName == "" {
		return fmt.Errorf("passengerName is required")
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = PaymentMethodCash
	}
	if !r.PaymentMethod.IsValid() {
		return fmt.Errorf("invalid payment method: %s", r.PaymentMethod)
	}
	return nil
}

// CancelBookingRequest is the optional body of PATCH /bookings/:id/cancel
type CancelBookingRequest struct {
	Reason       *string  `json:"reason"`
	RefundAmount *float64 `json:"refundAmount" binding:"omitempty,gte=0"`
}

// UpdateBookingStatusRequest is the body of PATCH /bookings/:id/status
type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required"`
}

// ============================================================================
// LOYALTY
// ============================================================================

// LoyaltyTransactionType distinguishes credits from reversals in the ledger
type LoyaltyTransactionType string

const (
	LoyaltyTransactionEarn     LoyaltyTransactionType = "EARN"
	LoyaltyTransactionReversal LoyaltyTransactionType = "REVERSAL"
)

// LoyaltyTransaction is one entry of a user's loyalty ledger
type LoyaltyTransaction struct {
	ID          string                 `json:"id" db:"id"`
	UserID      string                 `json:"userId" db:"user_id"`
	BookingID   *string                `json:"bookingId,omitempty" db:"booking_id"`
	Points      int                    `json:"points" db:"points"`
	Type        LoyaltyTransactionType `json:"type" db:"type"`
	Description string                 `json:"description" db:"description"`
	CreatedAt   time.Time              `json:"createdAt" db:"created_at"`
}

// PointsForAmount returns floor(total / amountPerPoint)
func PointsForAmount(total, amountPerPoint float64) int {
	if amountPerPoint <= 0 || total <= 0 {
		return 0
	}
	return int(math.Floor(total / amountPerPoint))
}
