package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}
	return &PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, mock, cleanup
}

var seatColumns = []string{"id", "trip_id", "seat_number", "status", "booking_id", "created_at", "updated_at"}

var bookingRowColumns = []string{
	"id", "user_id", "trip_id", "seat_numbers", "passenger_name", "passenger_phone",
	"passenger_email", "total_amount", "status", "payment_method", "payment_status", "ticket_number",
	"qr_code", "special_requests", "seat_preference", "booking_source", "refund_amount",
	"cancellation_reason", "cancelled_by", "cancelled_at", "created_at", "updated_at",
}

func bookingRow(id string, status models.BookingStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingRowColumns).AddRow(
		id, "user-1", "trip-1", "{1,2}", "Nimal Perera", "0771234567",
		nil, 2000.0, string(status), "CASH", "PAID", "TKT-20250310080000-a1b2c3d4e5f6",
		"QR-20250310080000-0011223344556677", nil, nil, "mobile", nil,
		nil, nil, nil, now, now,
	)
}

func newTestBooking() *models.Booking {
	return &models.Booking{
		ID:             "booking-1",
		UserID:         "user-1",
		TripID:         "trip-1",
		SeatNumbers:    models.StringArray{"1", "2"},
		PassengerName:  "Nimal Perera",
		PassengerPhone: "0771234567",
		TotalAmount:    2000,
		Status:         models.BookingStatusConfirmed,
		PaymentMethod:  models.PaymentMethodCash,
		PaymentStatus:  models.PaymentStatusPaid,
		TicketNumber:   "TKT-20250310080000-a1b2c3d4e5f6",
		QRCode:         "QR-20250310080000-0011223344556677",
	}
}

func TestBookingRepository_CreateWithSeats_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats (.+) FOR UPDATE").
		WithArgs("trip-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow("s1", "trip-1", "1", "AVAILABLE", nil, now, now).
			AddRow("s2", "trip-1", "2", "AVAILABLE", nil, now, now))
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("UPDATE seats SET status = 'OCCUPIED'").
		WithArgs("booking-1", "trip-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("user-1", 20).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO loyalty_transactions").
		WithArgs("user-1", "booking-1", 20, "EARN", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking := newTestBooking()
	err := repo.CreateWithSeats(context.Background(), booking, 20)

	require.NoError(t, err)
	assert.Equal(t, now, booking.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_CreateWithSeats_SeatTaken(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	now := time.Now()
	other := "booking-0"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats (.+) FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow("s1", "trip-1", "1", "OCCUPIED", other, now, now).
			AddRow("s2", "trip-1", "2", "AVAILABLE", nil, now, now))
	mock.ExpectRollback()

	err := repo.CreateWithSeats(context.Background(), newTestBooking(), 20)

	var unavailable *SeatsUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, []string{"1"}, unavailable.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_CreateWithSeats_UnknownSeat(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	now := time.Now()

	booking := newTestBooking()
	booking.SeatNumbers = models.StringArray{"9", "1", "7"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats (.+) FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow("s1", "trip-1", "1", "AVAILABLE", nil, now, now))
	mock.ExpectRollback()

	err := repo.CreateWithSeats(context.Background(), booking, 0)

	var unavailable *SeatsUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, []string{"9", "7"}, unavailable.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_CreateWithSeats_DuplicateTicket(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats (.+) FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow("s1", "trip-1", "1", "AVAILABLE", nil, now, now).
			AddRow("s2", "trip-1", "2", "AVAILABLE", nil, now, now))
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "bookings_ticket_number_key"})
	mock.ExpectRollback()

	err := repo.CreateWithSeats(context.Background(), newTestBooking(), 0)

	assert.ErrorIs(t, err, ErrDuplicateTicket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_CreateWithSeats_LostRace(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats (.+) FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow("s1", "trip-1", "1", "AVAILABLE", nil, now, now).
			AddRow("s2", "trip-1", "2", "AVAILABLE", nil, now, now))
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("UPDATE seats SET status = 'OCCUPIED'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := repo.CreateWithSeats(context.Background(), newTestBooking(), 20)

	var unavailable *SeatsUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ApplyStatusChange_Cancel(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	reason := "change of plans"
	cancelledBy := "user-1"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings b WHERE b.id = \\$1 FOR UPDATE").
		WithArgs("booking-1").
		WillReturnRows(bookingRow("booking-1", models.BookingStatusConfirmed))
	mock.ExpectExec("UPDATE bookings\\s+SET status = 'CANCELLED'").
		WithArgs("booking-1", "change of plans", nil, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE seats\\s+SET status = 'AVAILABLE', booking_id = NULL").
		WithArgs("booking-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.ApplyStatusChange(context.Background(), StatusChange{
		BookingID:   "booking-1",
		To:          models.BookingStatusCancelled,
		CancelledBy: &cancelledBy,
		Reason:      &reason,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ApplyStatusChange_CancelReversesPoints(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings b WHERE b.id = \\$1 FOR UPDATE").
		WillReturnRows(bookingRow("booking-1", models.BookingStatusConfirmed))
	mock.ExpectExec("UPDATE bookings\\s+SET status = 'CANCELLED'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE seats").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("user-1", -20).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO loyalty_transactions").
		WithArgs("user-1", "booking-1", -20, "REVERSAL", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyStatusChange(context.Background(), StatusChange{
		BookingID:     "booking-1",
		To:            models.BookingStatusCancelled,
		ReversePoints: 20,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ApplyStatusChange_AlreadyCancelled(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings b WHERE b.id = \\$1 FOR UPDATE").
		WillReturnRows(bookingRow("booking-1", models.BookingStatusCancelled))
	mock.ExpectRollback()

	err := repo.ApplyStatusChange(context.Background(), StatusChange{
		BookingID: "booking-1",
		To:        models.BookingStatusCancelled,
	})

	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ApplyStatusChange_Confirm(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	paid := models.PaymentStatusPaid

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings b WHERE b.id = \\$1 FOR UPDATE").
		WillReturnRows(bookingRow("booking-1", models.BookingStatusPending))
	mock.ExpectExec("UPDATE bookings\\s+SET status = \\$2").
		WithArgs("booking-1", "CONFIRMED", "PAID", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("user-1", 20).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO loyalty_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyStatusChange(context.Background(), StatusChange{
		BookingID:     "booking-1",
		From:          models.BookingStatusPending,
		To:            models.BookingStatusConfirmed,
		PaymentStatus: &paid,
		AwardPoints:   20,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ApplyStatusChange_StaleStatus(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings b WHERE b.id = \\$1 FOR UPDATE").
		WillReturnRows(bookingRow("booking-1", models.BookingStatusConfirmed))
	mock.ExpectRollback()

	err := repo.ApplyStatusChange(context.Background(), StatusChange{
		BookingID: "booking-1",
		From:      models.BookingStatusPending,
		To:        models.BookingStatusCompleted,
	})

	assert.ErrorIs(t, err, ErrStatusChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_GetByID_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM bookings b WHERE b.id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	_, err := repo.GetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_List_Filters(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery("FROM bookings b (.+) AND b.user_id = \\$1 AND b.status = \\$2 ORDER BY b.created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("user-1", "CONFIRMED", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	bookings, err := repo.List(context.Background(), models.BookingFilter{
		UserID: "user-1",
		Status: models.BookingStatusConfirmed,
		Limit:  20,
	})

	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}
