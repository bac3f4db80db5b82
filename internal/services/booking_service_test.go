package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/smarttransit/busline-backend/internal/cache"
	"github.com/smarttransit/busline-backend/internal/config"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	rider      = models.Principal{UserID: "user-1", Role: models.RolePassenger}
	otherRider = models.Principal{UserID: "user-2", Role: models.RolePassenger}
	staff      = models.Principal{UserID: "staff-1", Role: models.RoleStaff}
	admin      = models.Principal{UserID: "admin-1", Role: models.RoleAdmin}
)

var loyaltyCfg = config.LoyaltyConfig{AmountPerPoint: 100}

type bookingFixture struct {
	service  *BookingService
	bookings *mockBookingStore
	trips    *mockTripStore
	loyalty  *mockLoyaltyStore
}

func newBookingFixture(seatCache cache.SeatCache, cfg config.LoyaltyConfig) *bookingFixture {
	f := &bookingFixture{
		bookings: &mockBookingStore{},
		trips:    &mockTripStore{},
		loyalty:  &mockLoyaltyStore{},
	}
	f.service = NewBookingService(f.bookings, f.trips, f.loyalty, seatCache, cfg, testLogger())
	return f
}

func scheduledTrip(price float64) *models.Trip {
	departure := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	return &models.Trip{
		ID:            "trip-1",
		RouteID:       "route-1",
		DepartureTime: departure,
		ArrivalTime:   departure.Add(time.Hour),
		Price:         price,
		Status:        models.TripStatusScheduled,
	}
}

func bookingRequest(seats ...string) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		TripID:         "trip-1",
		SeatNumbers:    seats,
		PassengerName:  "Nimal Perera",
		PassengerPhone: "077 123 4567",
	}
}

func TestCreateBooking_Success(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	f := newBookingFixture(cache.NewRedisSeatCache(db, 30*time.Second), loyaltyCfg)
	ctx := context.Background()

	f.trips.On("GetByID", ctx, "trip-1").Return(scheduledTrip(1000), nil)
	f.bookings.On("CreateWithSeats", ctx, mock.MatchedBy(func(b *models.Booking) bool {
		return b.UserID == "user-1" &&
			b.TotalAmount == 2000 &&
			b.Status == models.BookingStatusConfirmed &&
			b.PaymentStatus == models.PaymentStatusPaid &&
			b.PaymentMethod == models.PaymentMethodCash &&
			b.PassengerPhone == "0771234567" &&
			len(b.SeatNumbers) == 2
	}), 20).Return(nil)
	f.bookings.On("GetDetails", ctx, mock.AnythingOfType("string")).Return(&models.BookingDetails{
		Booking: models.Booking{ID: "booking-1", TotalAmount: 2000, Status: models.BookingStatusConfirmed},
	}, nil)
	mockRedis.ExpectDel("seats:trip-1").SetVal(1)

	details, err := f.service.CreateBooking(ctx, rider, bookingRequest("1", "2"), "")

	require.NoError(t, err)
	assert.Equal(t, 2000.0, details.TotalAmount)
	f.bookings.AssertExpectations(t)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}

func TestCreateBooking_CardPaymentIsPending(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	req := bookingRequest("3")
	req.PaymentMethod = models.PaymentMethodCard

	f.trips.On("GetByID", ctx, "trip-1").Return(scheduledTrip(500), nil)
	f.bookings.On("CreateWithSeats", ctx, mock.MatchedBy(func(b *models.Booking) bool {
		return b.Status == models.BookingStatusPending && b.PaymentStatus == models.PaymentStatusPending
	}), 0).Return(nil)
	f.bookings.On("GetDetails", ctx, mock.Anything).Return(&models.BookingDetails{}, nil)

	_, err := f.service.CreateBooking(ctx, rider, req, "")

	require.NoError(t, err)
	f.bookings.AssertExpectations(t)
}

func TestCreateBooking_RecordsDeviceSource(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()
	iphone := "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"

	f.trips.On("GetByID", ctx, "trip-1").Return(scheduledTrip(500), nil)
	f.bookings.On("CreateWithSeats", ctx, mock.MatchedBy(func(b *models.Booking) bool {
		return b.BookingSource != nil && *b.BookingSource == "mobile"
	}), 5).Return(nil)
	f.bookings.On("GetDetails", ctx, mock.Anything).Return(&models.BookingDetails{}, nil)

	_, err := f.service.CreateBooking(ctx, rider, bookingRequest("1"), iphone)

	require.NoError(t, err)
	f.bookings.AssertExpectations(t)
}

func TestCreateBooking_ValidationErrors(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *models.CreateBookingRequest
	}{
		{"no seats", bookingRequest()},
		{"duplicate seats", bookingRequest("1", "1")},
		{"bad phone", func() *models.CreateBookingRequest {
			r := bookingRequest("1")
			r.PassengerPhone = "12345"
			return r
		}()},
		{"bad payment method", func() *models.CreateBookingRequest {
			r := bookingRequest("1")
			r.PaymentMethod = "CHEQUE"
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateBooking(ctx, rider, tt.req, "")
			assert.True(t, IsKind(err, KindValidation), "got %v", err)
		})
	}
	f.trips.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestCreateBooking_TripErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.trips.On("GetByID", ctx, "trip-1").Return(nil, database.ErrNotFound)

		_, err := f.service.CreateBooking(ctx, rider, bookingRequest("1"), "")
		assert.True(t, IsKind(err, KindNotFound))
	})

	t.Run("completed trip", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		trip := scheduledTrip(1000)
		trip.Status = models.TripStatusCompleted
		f.trips.On("GetByID", ctx, "trip-1").Return(trip, nil)

		_, err := f.service.CreateBooking(ctx, rider, bookingRequest("1"), "")
		assert.True(t, IsKind(err, KindTripUnavailable))
		f.bookings.AssertNotCalled(t, "CreateWithSeats", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.trips.On("GetByID", ctx, "trip-1").Return(nil, errors.New("connection refused"))

		_, err := f.service.CreateBooking(ctx, rider, bookingRequest("1"), "")
		assert.True(t, IsKind(err, KindStore))
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestCreateBooking_AccessDenied(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)

	_, err := f.service.CreateBooking(context.Background(), models.Principal{UserID: "x", Role: "GUEST"}, bookingRequest("1"), "")

	assert.True(t, IsKind(err, KindAccessDenied))
}

func TestCreateBooking_SeatsUnavailable(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	f.trips.On("GetByID", ctx, "trip-1").Return(scheduledTrip(1000), nil)
	f.bookings.On("CreateWithSeats", ctx, mock.Anything, mock.Anything).
		Return(&database.SeatsUnavailableError{Seats: []string{"1"}})

	_, err := f.service.CreateBooking(ctx, rider, bookingRequest("1", "2"), "")

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, KindSeatsUnavailable, svcErr.Kind)
	assert.Equal(t, []string{"1"}, svcErr.Seats)
	f.bookings.AssertNotCalled(t, "GetDetails", mock.Anything, mock.Anything)
}

func TestCreateBooking_RetriesTicketCollision(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	var tickets []string
	f.trips.On("GetByID", ctx, "trip-1").Return(scheduledTrip(1000), nil)
	f.bookings.On("CreateWithSeats", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			tickets = append(tickets, args.Get(1).(*models.Booking).TicketNumber)
		}).
		Return(database.ErrDuplicateTicket).Once()
	f.bookings.On("CreateWithSeats", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			tickets = append(tickets, args.Get(1).(*models.Booking).TicketNumber)
		}).
		Return(nil).Once()
	f.bookings.On("GetDetails", ctx, mock.Anything).Return(&models.BookingDetails{}, nil)

	_, err := f.service.CreateBooking(ctx, rider, bookingRequest("1"), "")

	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.NotEqual(t, tickets[0], tickets[1])
}

func TestCreateBooking_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	f.trips.On("GetByID", ctx, "trip-1").Return(scheduledTrip(1000), nil)
	f.bookings.On("CreateWithSeats", ctx, mock.Anything, mock.Anything).Return(database.ErrDuplicateTicket)

	_, err := f.service.CreateBooking(ctx, rider, bookingRequest("1"), "")

	assert.True(t, IsKind(err, KindStore))
	f.bookings.AssertNumberOfCalls(t, "CreateWithSeats", maxTicketAttempts)
}

func ownBooking(status models.BookingStatus) *models.Booking {
	return &models.Booking{
		ID:            "booking-1",
		UserID:        "user-1",
		TripID:        "trip-1",
		SeatNumbers:   models.StringArray{"1"},
		TotalAmount:   1000,
		Status:        status,
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func TestCancelBooking_Owner(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	f := newBookingFixture(cache.NewRedisSeatCache(db, 30*time.Second), loyaltyCfg)
	ctx := context.Background()
	reason := "plans changed"

	f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusConfirmed), nil)
	f.bookings.On("ApplyStatusChange", ctx, mock.MatchedBy(func(c database.StatusChange) bool {
		return c.To == models.BookingStatusCancelled &&
			c.ReversePoints == 0 &&
			*c.CancelledBy == "user-1" &&
			*c.Reason == reason
	})).Return(nil)
	f.bookings.On("GetDetails", ctx, "booking-1").Return(&models.BookingDetails{
		Booking: models.Booking{ID: "booking-1", Status: models.BookingStatusCancelled},
	}, nil)
	mockRedis.ExpectDel("seats:trip-1").SetVal(1)

	details, err := f.service.CancelBooking(ctx, rider, "booking-1", &models.CancelBookingRequest{Reason: &reason})

	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, details.Status)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}

func TestCancelBooking_ReversesPointsWhenConfigured(t *testing.T) {
	f := newBookingFixture(nil, config.LoyaltyConfig{AmountPerPoint: 100, ReverseOnCancel: true})
	ctx := context.Background()

	f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusConfirmed), nil)
	f.bookings.On("ApplyStatusChange", ctx, mock.MatchedBy(func(c database.StatusChange) bool {
		return c.ReversePoints == 10
	})).Return(nil)
	f.bookings.On("GetDetails", ctx, "booking-1").Return(&models.BookingDetails{}, nil)

	_, err := f.service.CancelBooking(ctx, rider, "booking-1", nil)

	require.NoError(t, err)
	f.bookings.AssertExpectations(t)
}

func TestCancelBooking_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "missing").Return(nil, database.ErrNotFound)

		_, err := f.service.CancelBooking(ctx, rider, "missing", nil)
		assert.True(t, IsKind(err, KindNotFound))
	})

	t.Run("other rider", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusConfirmed), nil)

		_, err := f.service.CancelBooking(ctx, otherRider, "booking-1", nil)
		assert.True(t, IsKind(err, KindAccessDenied))
		f.bookings.AssertNotCalled(t, "ApplyStatusChange", mock.Anything, mock.Anything)
	})

	t.Run("staff may cancel any booking", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusConfirmed), nil)
		f.bookings.On("ApplyStatusChange", ctx, mock.Anything).Return(nil)
		f.bookings.On("GetDetails", ctx, "booking-1").Return(&models.BookingDetails{}, nil)

		_, err := f.service.CancelBooking(ctx, staff, "booking-1", nil)
		assert.NoError(t, err)
	})

	t.Run("already cancelled", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusCancelled), nil)

		_, err := f.service.CancelBooking(ctx, rider, "booking-1", nil)
		assert.True(t, IsKind(err, KindAlreadyCancelled))
	})

	t.Run("cancelled concurrently", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusConfirmed), nil)
		f.bookings.On("ApplyStatusChange", ctx, mock.Anything).Return(database.ErrAlreadyCancelled)

		_, err := f.service.CancelBooking(ctx, rider, "booking-1", nil)
		assert.True(t, IsKind(err, KindAlreadyCancelled))
	})
}

func TestAdminSetBookingStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("pending to confirmed awards points", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusPending), nil)
		f.bookings.On("ApplyStatusChange", ctx, database.StatusChange{
			BookingID:   "booking-1",
			From:        models.BookingStatusPending,
			To:          models.BookingStatusConfirmed,
			AwardPoints: 10,
		}).Return(nil)
		f.bookings.On("GetDetails", ctx, "booking-1").Return(&models.BookingDetails{}, nil)

		_, err := f.service.AdminSetBookingStatus(ctx, admin, "booking-1", models.BookingStatusConfirmed)
		require.NoError(t, err)
		f.bookings.AssertExpectations(t)
	})

	t.Run("confirmed to completed awards nothing", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusConfirmed), nil)
		f.bookings.On("ApplyStatusChange", ctx, mock.MatchedBy(func(c database.StatusChange) bool {
			return c.AwardPoints == 0 && c.To == models.BookingStatusCompleted
		})).Return(nil)
		f.bookings.On("GetDetails", ctx, "booking-1").Return(&models.BookingDetails{}, nil)

		_, err := f.service.AdminSetBookingStatus(ctx, admin, "booking-1", models.BookingStatusCompleted)
		require.NoError(t, err)
	})

	t.Run("leaving cancelled is refused", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusCancelled), nil)

		_, err := f.service.AdminSetBookingStatus(ctx, admin, "booking-1", models.BookingStatusConfirmed)
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("returning to pending is refused", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusConfirmed), nil)

		_, err := f.service.AdminSetBookingStatus(ctx, admin, "booking-1", models.BookingStatusPending)
		assert.True(t, IsKind(err, KindValidation))
		f.bookings.AssertNotCalled(t, "ApplyStatusChange", mock.Anything, mock.Anything)
	})

	t.Run("concurrent change", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)
		f.bookings.On("GetByID", ctx, "booking-1").Return(ownBooking(models.BookingStatusPending), nil)
		f.bookings.On("ApplyStatusChange", ctx, mock.Anything).Return(database.ErrStatusChanged)

		_, err := f.service.AdminSetBookingStatus(ctx, admin, "booking-1", models.BookingStatusConfirmed)
		assert.True(t, IsKind(err, KindConflict))
	})

	t.Run("riders cannot override", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)

		_, err := f.service.AdminSetBookingStatus(ctx, rider, "booking-1", models.BookingStatusConfirmed)
		assert.True(t, IsKind(err, KindAccessDenied))
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newBookingFixture(nil, loyaltyCfg)

		_, err := f.service.AdminSetBookingStatus(ctx, admin, "booking-1", "REFUNDED")
		assert.True(t, IsKind(err, KindValidation))
	})
}

func TestMarkBookingPaid_ConfirmsPending(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	booking := ownBooking(models.BookingStatusPending)
	booking.PaymentStatus = models.PaymentStatusPending
	f.bookings.On("GetByID", ctx, "booking-1").Return(booking, nil)
	f.bookings.On("ApplyStatusChange", ctx, mock.MatchedBy(func(c database.StatusChange) bool {
		return c.From == models.BookingStatusPending &&
			c.To == models.BookingStatusConfirmed &&
			*c.PaymentStatus == models.PaymentStatusPaid &&
			c.AwardPoints == 10
	})).Return(nil)
	f.bookings.On("GetDetails", ctx, "booking-1").Return(&models.BookingDetails{}, nil)

	_, err := f.service.MarkBookingPaid(ctx, staff, "booking-1")

	require.NoError(t, err)
	f.bookings.AssertExpectations(t)
}

func TestListBookings_RidersSeeOwnBookings(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	f.bookings.On("List", ctx, models.BookingFilter{UserID: "user-1", Limit: defaultBookingPageSize}).
		Return([]models.BookingDetails{}, nil)

	_, err := f.service.ListBookings(ctx, rider, models.BookingFilter{UserID: "user-2"})

	require.NoError(t, err)
	f.bookings.AssertExpectations(t)
}

func TestGetBooking_OtherRiderDenied(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	f.bookings.On("GetDetails", ctx, "booking-1").Return(&models.BookingDetails{Booking: *ownBooking(models.BookingStatusConfirmed)}, nil)

	_, err := f.service.GetBooking(ctx, otherRider, "booking-1")
	assert.True(t, IsKind(err, KindAccessDenied))

	_, err = f.service.GetBooking(ctx, staff, "booking-1")
	assert.NoError(t, err)
}

func TestGetSeatMap_ReadThroughCache(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	f := newBookingFixture(cache.NewRedisSeatCache(db, 30*time.Second), loyaltyCfg)
	ctx := context.Background()

	seats := []models.Seat{
		{ID: "s1", TripID: "trip-1", SeatNumber: "1", Status: models.SeatStatusAvailable},
		{ID: "s2", TripID: "trip-1", SeatNumber: "2", Status: models.SeatStatusOccupied},
	}
	raw, err := json.Marshal(models.NewSeatMap("trip-1", seats))
	require.NoError(t, err)

	mockRedis.ExpectGet("seats:trip-1").RedisNil()
	mockRedis.ExpectSet("seats:trip-1", raw, 30*time.Second).SetVal("OK")
	f.trips.On("GetByID", ctx, "trip-1").Return(scheduledTrip(1000), nil)
	f.trips.On("ListSeats", ctx, "trip-1").Return(seats, nil)

	seatMap, err := f.service.GetSeatMap(ctx, "trip-1")

	require.NoError(t, err)
	assert.Equal(t, 2, seatMap.Total)
	assert.Equal(t, 1, seatMap.Available)
	assert.Equal(t, 1, seatMap.Occupied)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}

func TestGetLoyalty(t *testing.T) {
	f := newBookingFixture(nil, loyaltyCfg)
	ctx := context.Background()

	f.loyalty.On("GetBalance", ctx, "user-1").Return(30, nil)
	f.loyalty.On("ListTransactions", ctx, "user-1", 50).Return([]models.LoyaltyTransaction{{Points: 30}}, nil)

	summary, err := f.service.GetLoyalty(ctx, rider)

	require.NoError(t, err)
	assert.Equal(t, 30, summary.Points)
	assert.Len(t, summary.Transactions, 1)
}
