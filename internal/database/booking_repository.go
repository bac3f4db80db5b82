package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/busline-backend/internal/models"
)

const bookingColumns = `b.id, b.user_id, b.trip_id, b.seat_numbers, b.passenger_name, b.passenger_phone,
	b.passenger_email, b.total_amount, b.status, b.payment_method, b.payment_status, b.ticket_number,
	b.qr_code, b.special_requests, b.seat_preference, b.booking_source, b.refund_amount,
	b.cancellation_reason, b.cancelled_by, b.cancelled_at, b.created_at, b.updated_at`

const bookingDetailsQuery = `
	SELECT ` + bookingColumns + `,
	       t.departure_time, t.arrival_time, t.status AS trip_status,
	       r.code AS route_code, r.name AS route_name,
	       o.name AS origin_name, d.name AS destination_name,
	       bus.plate_number AS bus_plate_number
	FROM bookings b
	JOIN trips t ON t.id = b.trip_id
	JOIN routes r ON r.id = t.route_id
	JOIN stations o ON o.id = t.origin_station_id
	JOIN stations d ON d.id = t.destination_station_id
	LEFT JOIN buses bus ON bus.id = t.bus_id
`

// StatusChange describes a booking status transition applied under a row lock
type StatusChange struct {
	BookingID string
	// From, when set, must match the locked row's status
	From models.BookingStatus
	To   models.BookingStatus

	PaymentStatus *models.PaymentStatus
	AwardPoints   int
	// ReversePoints is deducted only if the booking had earned its points
	ReversePoints int

	CancelledBy  *string
	Reason       *string
	RefundAmount *float64
}

// BookingRepository handles bookings and the seat transitions tied to them
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateWithSeats locks the requested seats, inserts the booking, occupies the
// seats and credits loyalty points in one transaction. If any requested seat
// is missing or occupied nothing is written and a *SeatsUnavailableError
// lists the offending seats in request order.
func (r *BookingRepository) CreateWithSeats(ctx context.Context, booking *models.Booking, points int) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var seats []models.Seat
		lockQuery := `
			SELECT id, trip_id, seat_number, status, booking_id, created_at, updated_at
			FROM seats
			WHERE trip_id = $1 AND seat_number = ANY($2)
			ORDER BY seat_number
			FOR UPDATE
		`
		if err := tx.SelectContext(ctx, &seats, lockQuery, booking.TripID, pq.Array([]string(booking.SeatNumbers))); err != nil {
			return fmt.Errorf("failed to lock seats: %w", err)
		}

		if unavailable := unavailableSeats(booking.SeatNumbers, seats); len(unavailable) > 0 {
			return &SeatsUnavailableError{Seats: unavailable}
		}

		insertQuery := `
			INSERT INTO bookings (
				id, user_id, trip_id, seat_numbers, passenger_name, passenger_phone, passenger_email,
				total_amount, status, payment_method, payment_status, ticket_number, qr_code,
				special_requests, seat_preference, booking_source
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, insertQuery,
			booking.ID, booking.UserID, booking.TripID, booking.SeatNumbers, booking.PassengerName,
			booking.PassengerPhone, booking.PassengerEmail, booking.TotalAmount, booking.Status,
			booking.PaymentMethod, booking.PaymentStatus, booking.TicketNumber, booking.QRCode,
			booking.SpecialRequests, booking.SeatPreference, booking.BookingSource,
		).Scan(&booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create booking: %w", mapPQError(err))
		}

		occupyQuery := `
			UPDATE seats
			SET status = 'OCCUPIED', booking_id = $1, updated_at = NOW()
			WHERE trip_id = $2 AND seat_number = ANY($3) AND status = 'AVAILABLE'
		`
		res, err := tx.ExecContext(ctx, occupyQuery, booking.ID, booking.TripID, pq.Array([]string(booking.SeatNumbers)))
		if err != nil {
			return fmt.Errorf("failed to occupy seats: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows != int64(len(booking.SeatNumbers)) {
			return &SeatsUnavailableError{Seats: booking.SeatNumbers}
		}

		if points > 0 {
			return recordLoyalty(ctx, tx, booking.UserID, &booking.ID, points, models.LoyaltyTransactionEarn,
				fmt.Sprintf("Booking %s", booking.TicketNumber))
		}
		return nil
	})
}

func unavailableSeats(requested []string, locked []models.Seat) []string {
	status := make(map[string]models.SeatStatus, len(locked))
	for _, s := range locked {
		status[s.SeatNumber] = s.Status
	}

	var unavailable []string
	for _, n := range requested {
		if st, ok := status[n]; !ok || st != models.SeatStatusAvailable {
			unavailable = append(unavailable, n)
		}
	}
	return unavailable
}

// ApplyStatusChange locks the booking and applies change atomically. Moving
// into CANCELLED releases every seat linked to the booking.
func (r *BookingRepository) ApplyStatusChange(ctx context.Context, change StatusChange) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		locked := &models.Booking{}
		err := tx.GetContext(ctx, locked, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1 FOR UPDATE`, change.BookingID)
		if err != nil {
			return mapPQError(err)
		}
		if locked.IsCancelled() {
			return ErrAlreadyCancelled
		}
		if change.From != "" && locked.Status != change.From {
			return ErrStatusChanged
		}

		if change.To == models.BookingStatusCancelled {
			return cancelLocked(ctx, tx, locked, change)
		}

		query := `
			UPDATE bookings
			SET status = $2, payment_status = COALESCE($3, payment_status), updated_at = NOW()
			WHERE id = $1 AND status = $4
		`
		res, err := tx.ExecContext(ctx, query, locked.ID, change.To, change.PaymentStatus, locked.Status)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if err := expectRows(res, 1); err != nil {
			return ErrStatusChanged
		}

		if change.AwardPoints > 0 {
			return recordLoyalty(ctx, tx, locked.UserID, &locked.ID, change.AwardPoints, models.LoyaltyTransactionEarn,
				fmt.Sprintf("Booking %s", locked.TicketNumber))
		}
		return nil
	})
}

func cancelLocked(ctx context.Context, tx *sqlx.Tx, locked *models.Booking, change StatusChange) error {
	query := `
		UPDATE bookings
		SET status = 'CANCELLED',
		    cancellation_reason = $2,
		    refund_amount = $3,
		    cancelled_by = $4,
		    cancelled_at = NOW(),
		    payment_status = CASE WHEN COALESCE($3::numeric, 0) > 0 THEN 'REFUNDED' ELSE payment_status END,
		    updated_at = NOW()
		WHERE id = $1 AND status <> 'CANCELLED'
	`
	res, err := tx.ExecContext(ctx, query, locked.ID, change.Reason, change.RefundAmount, change.CancelledBy)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if err := expectRows(res, 1); err != nil {
		return ErrAlreadyCancelled
	}

	releaseQuery := `
		UPDATE seats
		SET status = 'AVAILABLE', booking_id = NULL, updated_at = NOW()
		WHERE booking_id = $1
	`
	if _, err := tx.ExecContext(ctx, releaseQuery, locked.ID); err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	earned := locked.Status == models.BookingStatusConfirmed || locked.Status == models.BookingStatusCompleted
	if change.ReversePoints > 0 && earned {
		return recordLoyalty(ctx, tx, locked.UserID, &locked.ID, -change.ReversePoints, models.LoyaltyTransactionReversal,
			fmt.Sprintf("Cancelled booking %s", locked.TicketNumber))
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking := &models.Booking{}
	if err := r.db.GetContext(ctx, booking, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, bookingID); err != nil {
		return nil, mapPQError(err)
	}
	return booking, nil
}

// GetDetails retrieves a booking joined with its trip context
func (r *BookingRepository) GetDetails(ctx context.Context, bookingID string) (*models.BookingDetails, error) {
	booking := &models.BookingDetails{}
	if err := r.db.GetContext(ctx, booking, bookingDetailsQuery+` WHERE b.id = $1`, bookingID); err != nil {
		return nil, mapPQError(err)
	}
	return booking, nil
}

// List returns bookings matching the filter, newest first
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetails, error) {
	query := bookingDetailsQuery + ` WHERE 1=1`
	args := []interface{}{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND b.user_id = $%d", len(args))
	}
	if filter.TripID != "" {
		args = append(args, filter.TripID)
		query += fmt.Sprintf(" AND b.trip_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND b.status = $%d", len(args))
	}

	query += ` ORDER BY b.created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	bookings := []models.BookingDetails{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}
