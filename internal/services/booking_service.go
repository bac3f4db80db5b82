package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/cache"
	"github.com/smarttransit/busline-backend/internal/config"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/utils"
	"github.com/smarttransit/busline-backend/pkg/validator"
)

const (
	maxTicketAttempts = 3

	defaultBookingPageSize = 50
	maxBookingPageSize     = 200
)

// BookingService sells seats and manages the booking lifecycle
type BookingService struct {
	bookings  BookingStore
	trips     TripStore
	loyalty   LoyaltyStore
	seatCache cache.SeatCache
	phone     *validator.PhoneValidator
	cfg       config.LoyaltyConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings BookingStore,
	trips TripStore,
	loyalty LoyaltyStore,
	seatCache cache.SeatCache,
	cfg config.LoyaltyConfig,
	logger *logrus.Logger,
) *BookingService {
	if seatCache == nil {
		seatCache = cache.NoopSeatCache{}
	}
	return &BookingService{
		bookings:  bookings,
		trips:     trips,
		loyalty:   loyalty,
		seatCache: seatCache,
		phone:     validator.NewPhoneValidator(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateBooking reserves the requested seats on a trip for the principal
func (s *BookingService) CreateBooking(ctx context.Context, principal models.Principal, req *models.CreateBookingRequest, userAgent string) (*models.BookingDetails, error) {
	if !principal.Can(models.CapBookSeats) {
		return nil, newError(KindAccessDenied, "role %s cannot book seats", principal.Role)
	}
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}
	phone, err := s.phone.Validate(req.PassengerPhone)
	if err != nil {
		return nil, validationError(fmt.Errorf("passengerPhone: %w", err))
	}

	trip, err := s.trips.GetByID(ctx, req.TripID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "trip %s not found", req.TripID)
		}
		return nil, storeError("failed to load trip", err)
	}
	if !trip.IsBookable() {
		return nil, newError(KindTripUnavailable, "trip %s is %s and cannot be booked", trip.ID, trip.Status)
	}

	total := float64(len(req.SeatNumbers)) * trip.Price
	status, paymentStatus := req.PaymentMethod.InitialStatus()
	points := 0
	if status == models.BookingStatusConfirmed {
		points = models.PointsForAmount(total, s.cfg.AmountPerPoint)
	}
	source := utils.DeviceType(userAgent)

	var booking *models.Booking
	for attempt := 1; attempt <= maxTicketAttempts; attempt++ {
		booking, err = s.newBooking(principal.UserID, req, phone, total, status, paymentStatus, source)
		if err != nil {
			return nil, storeError("failed to generate ticket", err)
		}

		err = s.bookings.CreateWithSeats(ctx, booking, points)
		if !errors.Is(err, database.ErrDuplicateTicket) {
			break
		}
		s.logger.WithFields(logrus.Fields{
			"trip_id": trip.ID,
			"attempt": attempt,
		}).Warn("Ticket reference collision, retrying")
	}
	if err != nil {
		return nil, mapCreateError(err, trip.ID)
	}

	s.invalidateSeats(ctx, trip.ID)
	s.logger.WithFields(logrus.Fields{
		"booking_id":    booking.ID,
		"trip_id":       trip.ID,
		"user_id":       principal.UserID,
		"seats":         strings.Join(req.SeatNumbers, ","),
		"status":        booking.Status,
		"loyalty_added": points,
	}).Info("Booking created")

	return s.details(ctx, booking.ID)
}

func (s *BookingService) newBooking(userID string, req *models.CreateBookingRequest, phone string, total float64,
	status models.BookingStatus, paymentStatus models.PaymentStatus, source string) (*models.Booking, error) {
	now := s.now()
	ticket, err := utils.GenerateTicketNumber(now)
	if err != nil {
		return nil, err
	}
	qr, err := utils.GenerateQRCode(now)
	if err != nil {
		return nil, err
	}

	return &models.Booking{
		ID:              uuid.New().String(),
		UserID:          userID,
		TripID:          req.TripID,
		SeatNumbers:     models.StringArray(req.SeatNumbers),
		PassengerName:   strings.TrimSpace(req.PassengerName),
		PassengerPhone:  phone,
		PassengerEmail:  req.PassengerEmail,
		TotalAmount:     total,
		Status:          status,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   paymentStatus,
		TicketNumber:    ticket,
		QRCode:          qr,
		SpecialRequests: req.SpecialRequests,
		SeatPreference:  req.SeatPreference,
		BookingSource:   &source,
	}, nil
}

func mapCreateError(err error, tripID string) error {
	var unavailable *database.SeatsUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return &Error{
			Kind:    KindSeatsUnavailable,
			Message: fmt.Sprintf("seats not available: %s", strings.Join(unavailable.Seats, ", ")),
			Seats:   unavailable.Seats,
			Err:     err,
		}
	case errors.Is(err, database.ErrInvalidReference):
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("trip %s not found", tripID), Err: err}
	case errors.Is(err, database.ErrDuplicateTicket):
		return storeError("failed to issue a unique ticket number", err)
	}
	return storeError("failed to create booking", err)
}

// CancelBooking cancels a booking and frees its seats. Principals without
// CapManageBookings may only cancel their own bookings.
func (s *BookingService) CancelBooking(ctx context.Context, principal models.Principal, bookingID string, req *models.CancelBookingRequest) (*models.BookingDetails, error) {
	booking, err := s.booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !principal.Can(models.CapManageBookings) && !booking.IsOwnedBy(principal.UserID) {
		return nil, newError(KindAccessDenied, "booking %s belongs to another user", bookingID)
	}
	if booking.IsCancelled() {
		return nil, newError(KindAlreadyCancelled, "booking %s is already cancelled", bookingID)
	}

	change := database.StatusChange{
		BookingID:     booking.ID,
		To:            models.BookingStatusCancelled,
		ReversePoints: s.reversalPoints(booking),
		CancelledBy:   &principal.UserID,
	}
	if req != nil {
		change.Reason = req.Reason
		change.RefundAmount = req.RefundAmount
	}
	if err := s.bookings.ApplyStatusChange(ctx, change); err != nil {
		return nil, mapStatusChangeError(err, bookingID)
	}

	s.invalidateSeats(ctx, booking.TripID)
	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"trip_id":      booking.TripID,
		"cancelled_by": principal.UserID,
	}).Info("Booking cancelled")

	return s.details(ctx, booking.ID)
}

// AdminSetBookingStatus overrides a booking's status. Moving into CANCELLED
// frees seats like CancelBooking. Moving out of CANCELLED or back to PENDING
// is refused.
func (s *BookingService) AdminSetBookingStatus(ctx context.Context, principal models.Principal, bookingID string, status models.BookingStatus) (*models.BookingDetails, error) {
	if !principal.Can(models.CapManageBookings) {
		return nil, newError(KindAccessDenied, "role %s cannot manage bookings", principal.Role)
	}
	if !status.IsValid() {
		return nil, newError(KindValidation, "invalid booking status: %s", status)
	}

	booking, err := s.booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == status {
		return s.details(ctx, booking.ID)
	}
	if booking.IsCancelled() {
		return nil, newError(KindValidation, "booking %s is cancelled and its seats may have been resold", bookingID)
	}
	// points are earned once, on leaving PENDING
	if status == models.BookingStatusPending {
		return nil, newError(KindValidation, "booking %s is %s and cannot return to PENDING", bookingID, booking.Status)
	}

	change := database.StatusChange{
		BookingID: booking.ID,
		From:      booking.Status,
		To:        status,
	}
	switch {
	case status == models.BookingStatusCancelled:
		change.CancelledBy = &principal.UserID
		change.ReversePoints = s.reversalPoints(booking)
	case booking.Status == models.BookingStatusPending:
		// PENDING bookings have not earned points yet
		change.AwardPoints = models.PointsForAmount(booking.TotalAmount, s.cfg.AmountPerPoint)
	}

	if err := s.bookings.ApplyStatusChange(ctx, change); err != nil {
		return nil, mapStatusChangeError(err, bookingID)
	}
	if status == models.BookingStatusCancelled {
		s.invalidateSeats(ctx, booking.TripID)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"from":       booking.Status,
		"to":         status,
		"admin_id":   principal.UserID,
	}).Info("Booking status overridden")

	return s.details(ctx, booking.ID)
}

// MarkBookingPaid records payment; a PENDING booking becomes CONFIRMED and earns its points
func (s *BookingService) MarkBookingPaid(ctx context.Context, principal models.Principal, bookingID string) (*models.BookingDetails, error) {
	if !principal.Can(models.CapManageBookings) {
		return nil, newError(KindAccessDenied, "role %s cannot manage bookings", principal.Role)
	}

	booking, err := s.booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.IsCancelled() {
		return nil, newError(KindValidation, "booking %s is cancelled", bookingID)
	}
	if booking.PaymentStatus == models.PaymentStatusPaid {
		return s.details(ctx, booking.ID)
	}

	paid := models.PaymentStatusPaid
	change := database.StatusChange{
		BookingID:     booking.ID,
		From:          booking.Status,
		To:            booking.Status,
		PaymentStatus: &paid,
	}
	if booking.Status == models.BookingStatusPending {
		change.To = models.BookingStatusConfirmed
		change.AwardPoints = models.PointsForAmount(booking.TotalAmount, s.cfg.AmountPerPoint)
	}

	if err := s.bookings.ApplyStatusChange(ctx, change); err != nil {
		return nil, mapStatusChangeError(err, bookingID)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"status":     change.To,
	}).Info("Booking marked paid")

	return s.details(ctx, booking.ID)
}

// GetBooking returns one booking; riders may only read their own
func (s *BookingService) GetBooking(ctx context.Context, principal models.Principal, bookingID string) (*models.BookingDetails, error) {
	details, err := s.details(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !principal.Can(models.CapManageBookings) && !details.IsOwnedBy(principal.UserID) {
		return nil, newError(KindAccessDenied, "booking %s belongs to another user", bookingID)
	}
	return details, nil
}

// ListBookings lists bookings; principals without CapManageBookings only see their own
func (s *BookingService) ListBookings(ctx context.Context, principal models.Principal, filter models.BookingFilter) ([]models.BookingDetails, error) {
	if !principal.Can(models.CapManageBookings) {
		filter.UserID = principal.UserID
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, newError(KindValidation, "invalid booking status: %s", filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultBookingPageSize
	}
	if filter.Limit > maxBookingPageSize {
		filter.Limit = maxBookingPageSize
	}

	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, storeError("failed to list bookings", err)
	}
	return bookings, nil
}

// GetSeatMap returns a trip's seats with availability counts
func (s *BookingService) GetSeatMap(ctx context.Context, tripID string) (*models.SeatMap, error) {
	cached, err := s.seatCache.Get(ctx, tripID)
	if err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("Seat cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	if _, err := s.trips.GetByID(ctx, tripID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "trip %s not found", tripID)
		}
		return nil, storeError("failed to load trip", err)
	}
	seats, err := s.trips.ListSeats(ctx, tripID)
	if err != nil {
		return nil, storeError("failed to load seats", err)
	}

	seatMap := models.NewSeatMap(tripID, seats)
	if err := s.seatCache.Set(ctx, seatMap); err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("Seat cache write failed")
	}
	return seatMap, nil
}

// LoyaltySummary is a user's balance and recent ledger entries
type LoyaltySummary struct {
	UserID       string                      `json:"userId"`
	Points       int                         `json:"points"`
	Transactions []models.LoyaltyTransaction `json:"transactions"`
}

// GetLoyalty returns the principal's loyalty balance and last 50 ledger entries
func (s *BookingService) GetLoyalty(ctx context.Context, principal models.Principal) (*LoyaltySummary, error) {
	points, err := s.loyalty.GetBalance(ctx, principal.UserID)
	if err != nil {
		return nil, storeError("failed to load loyalty balance", err)
	}
	txs, err := s.loyalty.ListTransactions(ctx, principal.UserID, 50)
	if err != nil {
		return nil, storeError("failed to load loyalty transactions", err)
	}
	return &LoyaltySummary{UserID: principal.UserID, Points: points, Transactions: txs}, nil
}

func (s *BookingService) booking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "booking %s not found", bookingID)
		}
		return nil, storeError("failed to load booking", err)
	}
	return booking, nil
}

func (s *BookingService) details(ctx context.Context, bookingID string) (*models.BookingDetails, error) {
	details, err := s.bookings.GetDetails(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "booking %s not found", bookingID)
		}
		return nil, storeError("failed to load booking", err)
	}
	return details, nil
}

func (s *BookingService) reversalPoints(booking *models.Booking) int {
	if !s.cfg.ReverseOnCancel {
		return 0
	}
	return models.PointsForAmount(booking.TotalAmount, s.cfg.AmountPerPoint)
}

// invalidateSeats drops the trip's cached seat map; a failure only delays freshness until the TTL
func (s *BookingService) invalidateSeats(ctx context.Context, tripID string) {
	if err := s.seatCache.Invalidate(ctx, tripID); err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("Seat cache invalidation failed")
	}
}

func mapStatusChangeError(err error, bookingID string) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("booking %s not found", bookingID), Err: err}
	case errors.Is(err, database.ErrAlreadyCancelled):
		return &Error{Kind: KindAlreadyCancelled, Message: fmt.Sprintf("booking %s is already cancelled", bookingID), Err: err}
	case errors.Is(err, database.ErrStatusChanged):
		return &Error{Kind: KindConflict, Message: fmt.Sprintf("booking %s was modified concurrently", bookingID), Err: err}
	}
	return storeError("failed to update booking", err)
}
