package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/services"
)

const maxFeedSize = 64 << 20

// StationRepository is the station store used by NetworkHandler
type StationRepository interface {
	Create(ctx context.Context, station *models.Station) error
	GetByCode(ctx context.Context, code string) (*models.Station, error)
	List(ctx context.Context) ([]models.Station, error)
}

// RouteRepository is the route store used by NetworkHandler
type RouteRepository interface {
	Create(ctx context.Context, route *models.Route, stationIDs []string) error
	List(ctx context.Context) ([]models.Route, error)
	GetDetails(ctx context.Context, routeID string) (*models.RouteDetails, error)
	UpsertSchedule(ctx context.Context, schedule *models.RouteSchedule) error
}

// FeedImporter loads stations and routes from a GTFS static feed
type FeedImporter interface {
	Import(ctx context.Context, feed []byte) (*models.GTFSImportResult, error)
}

// NetworkHandler handles station, route and schedule endpoints
type NetworkHandler struct {
	stations StationRepository
	routes   RouteRepository
	importer FeedImporter
	logger   *logrus.Logger
}

// NewNetworkHandler creates a new NetworkHandler
func NewNetworkHandler(stations StationRepository, routes RouteRepository, importer FeedImporter, logger *logrus.Logger) *NetworkHandler {
	return &NetworkHandler{
		stations: stations,
		routes:   routes,
		importer: importer,
		logger:   logger,
	}
}

// ===========================================================================
// STATIONS
// ===========================================================================

// CreateStation creates a station
// POST /api/v1/stations
func (h *NetworkHandler) CreateStation(c *gin.Context) {
	var req models.CreateStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	station := &models.Station{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Name:      req.Name,
		City:      req.City,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if err := h.stations.Create(c.Request.Context(), station); err != nil {
		respondStoreError(c, h.logger, err, "station not found")
		return
	}
	c.JSON(http.StatusCreated, station)
}

// ListStations lists stations
// GET /api/v1/stations
func (h *NetworkHandler) ListStations(c *gin.Context) {
	stations, err := h.stations.List(c.Request.Context())
	if err != nil {
		respondStoreError(c, h.logger, err, "station not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": stations, "count": len(stations)})
}

// ===========================================================================
// ROUTES
// ===========================================================================

// CreateRoute creates a route through stations given by code, in order
// POST /api/v1/routes
func (h *NetworkHandler) CreateRoute(c *gin.Context) {
	var req models.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	stationIDs := make([]string, 0, len(req.StationCodes))
	for _, code := range req.StationCodes {
		station, err := h.stations.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				badRequest(c, fmt.Errorf("unknown station code: %s", code))
				return
			}
			respondStoreError(c, h.logger, err, "station not found")
			return
		}
		stationIDs = append(stationIDs, station.ID)
	}

	route := &models.Route{
		ID:              uuid.New().String(),
		Code:            req.Code,
		Name:            req.Name,
		DistanceKm:      req.DistanceKm,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
	}
	if err := h.routes.Create(ctx, route, stationIDs); err != nil {
		respondStoreError(c, h.logger, err, "route not found")
		return
	}

	details, err := h.routes.GetDetails(ctx, route.ID)
	if err != nil {
		respondStoreError(c, h.logger, err, "route not found")
		return
	}
	c.JSON(http.StatusCreated, details)
}

// ListRoutes lists routes
// GET /api/v1/routes
func (h *NetworkHandler) ListRoutes(c *gin.Context) {
	routes, err := h.routes.List(c.Request.Context())
	if err != nil {
		respondStoreError(c, h.logger, err, "route not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes, "count": len(routes)})
}

// GetRoute returns a route with its stations and schedule
// GET /api/v1/routes/:id
func (h *NetworkHandler) GetRoute(c *gin.Context) {
	route, err := h.routes.GetDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, h.logger, err, "route not found")
		return
	}
	c.JSON(http.StatusOK, route)
}

// UpsertSchedule creates or replaces a route's schedule
// PUT /api/v1/routes/:id/schedule
func (h *NetworkHandler) UpsertSchedule(c *gin.Context) {
	var req models.UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	schedule := &models.RouteSchedule{
		ID:              uuid.New().String(),
		RouteID:         c.Param("id"),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		IntervalMinutes: req.IntervalMinutes,
		Price:           req.Price,
		IsActive:        req.IsActive == nil || *req.IsActive,
	}
	if err := h.routes.UpsertSchedule(c.Request.Context(), schedule); err != nil {
		if errors.Is(err, database.ErrInvalidReference) {
			respondStoreError(c, h.logger, database.ErrNotFound, "route not found")
			return
		}
		respondStoreError(c, h.logger, err, "route not found")
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// ImportGTFS loads stations and routes from an uploaded GTFS static zip
// POST /api/v1/routes/import-gtfs (multipart field "feed")
func (h *NetworkHandler) ImportGTFS(c *gin.Context) {
	header, err := c.FormFile("feed")
	if err != nil {
		badRequest(c, fmt.Errorf("multipart field \"feed\" is required"))
		return
	}
	if header.Size > maxFeedSize {
		badRequest(c, fmt.Errorf("feed exceeds %d MB", maxFeedSize>>20))
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer file.Close()

	feed, err := io.ReadAll(io.LimitReader(file, maxFeedSize))
	if err != nil {
		respondError(c, h.logger, &services.Error{Kind: services.KindStore, Message: "failed to read feed", Err: err})
		return
	}

	result, err := h.importer.Import(c.Request.Context(), feed)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
