package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/services"
	"github.com/smarttransit/busline-backend/internal/utils"
)

// BookingEngine is the booking surface the HTTP layer depends on
type BookingEngine interface {
	CreateBooking(ctx context.Context, principal models.Principal, req *models.CreateBookingRequest, userAgent string) (*models.BookingDetails, error)
	CancelBooking(ctx context.Context, principal models.Principal, bookingID string, req *models.CancelBookingRequest) (*models.BookingDetails, error)
	AdminSetBookingStatus(ctx context.Context, principal models.Principal, bookingID string, status models.BookingStatus) (*models.BookingDetails, error)
	MarkBookingPaid(ctx context.Context, principal models.Principal, bookingID string) (*models.BookingDetails, error)
	GetBooking(ctx context.Context, principal models.Principal, bookingID string) (*models.BookingDetails, error)
	ListBookings(ctx context.Context, principal models.Principal, filter models.BookingFilter) ([]models.BookingDetails, error)
	GetSeatMap(ctx context.Context, tripID string) (*models.SeatMap, error)
	GetLoyalty(ctx context.Context, principal models.Principal) (*services.LoyaltySummary, error)
	TicketPDF(ctx context.Context, principal models.Principal, bookingID string) ([]byte, string, error)
}

// BookingHandler handles booking endpoints
type BookingHandler struct {
	bookings BookingEngine
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingEngine, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// CreateBooking reserves seats on a trip
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), p, &req, utils.GetUserAgent(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// ListBookings lists the caller's bookings, or all bookings for staff
// GET /api/v1/bookings?tripId=&status=&limit=&offset=
func (h *BookingHandler) ListBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	filter := models.BookingFilter{
		UserID: c.Query("userId"),
		TripID: c.Query("tripId"),
		Status: models.BookingStatus(c.Query("status")),
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), p, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// GetBooking returns one booking
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBooking cancels a booking and frees its seats
// PATCH /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	// the body is optional
	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	booking, err := h.bookings.CancelBooking(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled successfully",
		"booking": booking,
	})
}

// UpdateStatus overrides a booking's status
// PATCH /api/v1/bookings/:id/status
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.bookings.AdminSetBookingStatus(c.Request.Context(), p, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// MarkPaid records payment of a booking
// PATCH /api/v1/bookings/:id/pay
func (h *BookingHandler) MarkPaid(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	booking, err := h.bookings.MarkBookingPaid(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// DownloadTicket streams the booking's e-ticket
// GET /api/v1/bookings/:id/ticket.pdf
func (h *BookingHandler) DownloadTicket(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	pdf, filename, err := h.bookings.TicketPDF(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GetSeatMap returns a trip's seats and availability counts
// GET /api/v1/trips/:id/seats
func (h *BookingHandler) GetSeatMap(c *gin.Context) {
	seatMap, err := h.bookings.GetSeatMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, seatMap)
}

// GetLoyalty returns the caller's loyalty balance
// GET /api/v1/loyalty
func (h *BookingHandler) GetLoyalty(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	summary, err := h.bookings.GetLoyalty(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// queryInt returns 0 for a missing or malformed value
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
