package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/services"
)

// TripEngine is the trip surface the HTTP layer depends on
type TripEngine interface {
	CreateTrip(ctx context.Context, req *models.CreateTripRequest) (*models.TripDetails, error)
	GetTrip(ctx context.Context, tripID string) (*models.TripDetails, error)
	ListTrips(ctx context.Context, filter models.TripFilter) ([]models.TripDetails, error)
	UpdateStatus(ctx context.Context, tripID string, status models.TripStatus) (*models.TripDetails, error)
	UpdateLocation(ctx context.Context, tripID string, req *models.UpdateTripLocationRequest) (*models.TripDetails, error)
	AssignDriver(ctx context.Context, tripID string, driverID *string) (*models.TripDetails, error)
	AssignBus(ctx context.Context, tripID, busID string) (*models.TripDetails, error)
}

// WaitlistEngine is the waitlist surface the HTTP layer depends on
type WaitlistEngine interface {
	Join(ctx context.Context, principal models.Principal, tripID string, req *models.JoinWaitlistRequest) (*models.WaitlistEntry, error)
	List(ctx context.Context, tripID string) ([]models.WaitlistEntry, error)
	Leave(ctx context.Context, principal models.Principal, tripID string) error
}

// TripHandler handles trip, assignment, generation and waitlist endpoints
type TripHandler struct {
	trips     TripEngine
	generator services.DailyTripGenerator
	waitlist  WaitlistEngine
	loc       *time.Location
	logger    *logrus.Logger
}

// NewTripHandler creates a new TripHandler. Dates are read in loc.
func NewTripHandler(
	trips TripEngine,
	generator services.DailyTripGenerator,
	waitlist WaitlistEngine,
	loc *time.Location,
	logger *logrus.Logger,
) *TripHandler {
	return &TripHandler{
		trips:     trips,
		generator: generator,
		waitlist:  waitlist,
		loc:       loc,
		logger:    logger,
	}
}

// ===========================================================================
// TRIPS
// ===========================================================================

// CreateTrip creates a trip explicitly
// POST /api/v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	trip, err := h.trips.CreateTrip(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// ListTrips lists trips
// GET /api/v1/trips?routeId=&status=&date=YYYY-MM-DD&limit=&offset=
func (h *TripHandler) ListTrips(c *gin.Context) {
	filter := models.TripFilter{
		RouteID: c.Query("routeId"),
		Status:  models.TripStatus(c.Query("status")),
		Limit:   queryInt(c, "limit"),
		Offset:  queryInt(c, "offset"),
	}
	if v := c.Query("date"); v != "" {
		date, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			badRequest(c, fmt.Errorf("date must be YYYY-MM-DD"))
			return
		}
		filter.Date = &date
	}

	trips, err := h.trips.ListTrips(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips, "count": len(trips)})
}

// GetTrip returns one trip
// GET /api/v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.trips.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// UpdateStatus changes a trip's status
// PATCH /api/v1/trips/:id/status
func (h *TripHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateTripStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	trip, err := h.trips.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// UpdateLocation records a trip's position
// PATCH /api/v1/trips/:id/location
func (h *TripHandler) UpdateLocation(c *gin.Context) {
	var req models.UpdateTripLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	trip, err := h.trips.UpdateLocation(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// ===========================================================================
// ASSIGNMENT
// ===========================================================================

// AssignDriver assigns or unassigns a trip's driver
// PATCH /api/v1/trips/:id/assign-driver
func (h *TripHandler) AssignDriver(c *gin.Context) {
	var req models.AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	trip, err := h.trips.AssignDriver(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// AssignBus assigns a trip's bus
// PATCH /api/v1/trips/:id/assign-bus
func (h *TripHandler) AssignBus(c *gin.Context) {
	var req models.AssignBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	trip, err := h.trips.AssignBus(c.Request.Context(), c.Param("id"), req.BusID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// GenerateDaily creates the trips of one day from route schedules
// POST /api/v1/trips/generate-daily
func (h *TripHandler) GenerateDaily(c *gin.Context) {
	var req models.GenerateDailyTripsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, h.loc)
	if err != nil {
		badRequest(c, fmt.Errorf("date must be YYYY-MM-DD"))
		return
	}

	result, err := h.generator.GenerateDailyTrips(c.Request.Context(), date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	body := gin.H{
		"message":   fmt.Sprintf("Generated %d trips for %s", result.Generated, result.Date),
		"generated": result.Generated,
		"trips":     result.Trips,
	}
	if len(result.Errors) > 0 {
		body["errors"] = result.Errors
	}
	c.JSON(http.StatusOK, body)
}

// ===========================================================================
// WAITLIST
// ===========================================================================

// JoinWaitlist adds the caller to a trip's waitlist
// POST /api/v1/trips/:id/waitlist
func (h *TripHandler) JoinWaitlist(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req models.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.waitlist.Join(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListWaitlist returns a trip's waitlist
// GET /api/v1/trips/:id/waitlist
func (h *TripHandler) ListWaitlist(c *gin.Context) {
	entries, err := h.waitlist.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// LeaveWaitlist removes the caller from a trip's waitlist
// DELETE /api/v1/trips/:id/waitlist
func (h *TripHandler) LeaveWaitlist(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.waitlist.Leave(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from waitlist"})
}
