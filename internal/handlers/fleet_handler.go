package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/pkg/validator"
)

// BusRepository is the bus store used by FleetHandler
type BusRepository interface {
	Create(ctx context.Context, bus *models.Bus) error
	GetByID(ctx context.Context, busID string) (*models.Bus, error)
	List(ctx context.Context, activeOnly bool) ([]models.Bus, error)
	Update(ctx context.Context, busID string, req *models.UpdateBusRequest) (*models.Bus, error)
}

// DriverRepository is the driver store used by FleetHandler
type DriverRepository interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, driverID string) (*models.Driver, error)
	List(ctx context.Context, activeOnly bool) ([]models.Driver, error)
	Update(ctx context.Context, driverID string, req *models.UpdateDriverRequest) (*models.Driver, error)
}

// FleetHandler handles bus and driver endpoints
type FleetHandler struct {
	buses   BusRepository
	drivers DriverRepository
	phone   *validator.PhoneValidator
	logger  *logrus.Logger
}

// NewFleetHandler creates a new FleetHandler
func NewFleetHandler(buses BusRepository, drivers DriverRepository, logger *logrus.Logger) *FleetHandler {
	return &FleetHandler{
		buses:   buses,
		drivers: drivers,
		phone:   validator.NewPhoneValidator(),
		logger:  logger,
	}
}

// ===========================================================================
// BUSES
// ===========================================================================

// CreateBus registers a bus
// POST /api/v1/buses
func (h *FleetHandler) CreateBus(c *gin.Context) {
	var req models.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bus := &models.Bus{
		ID:          uuid.New().String(),
		PlateNumber: req.PlateNumber,
		Capacity:    req.Capacity,
		Model:       req.Model,
		IsActive:    true,
	}
	if err := h.buses.Create(c.Request.Context(), bus); err != nil {
		respondStoreError(c, h.logger, err, "bus not found")
		return
	}

	h.logger.WithFields(logrus.Fields{"bus_id": bus.ID, "plate": bus.PlateNumber}).Info("Bus registered")
	c.JSON(http.StatusCreated, bus)
}

// ListBuses lists buses
// GET /api/v1/buses?active=true
func (h *FleetHandler) ListBuses(c *gin.Context) {
	buses, err := h.buses.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondStoreError(c, h.logger, err, "bus not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"buses": buses, "count": len(buses)})
}

// GetBus returns one bus
// GET /api/v1/buses/:id
func (h *FleetHandler) GetBus(c *gin.Context) {
	bus, err := h.buses.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, h.logger, err, "bus not found")
		return
	}
	c.JSON(http.StatusOK, bus)
}

// UpdateBus changes a bus's model or active flag
// PATCH /api/v1/buses/:id
func (h *FleetHandler) UpdateBus(c *gin.Context) {
	var req models.UpdateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bus, err := h.buses.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondStoreError(c, h.logger, err, "bus not found")
		return
	}
	c.JSON(http.StatusOK, bus)
}

// ===========================================================================
// DRIVERS
// ===========================================================================

// CreateDriver registers a driver
// POST /api/v1/drivers
func (h *FleetHandler) CreateDriver(c *gin.Context) {
	var req models.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	phone, err := h.phone.Validate(req.Phone)
	if err != nil {
		badRequest(c, err)
		return
	}

	driver := &models.Driver{
		ID:            uuid.New().String(),
		FullName:      req.FullName,
		LicenseNumber: req.LicenseNumber,
		Phone:         phone,
		IsActive:      true,
	}
	if err := h.drivers.Create(c.Request.Context(), driver); err != nil {
		respondStoreError(c, h.logger, err, "driver not found")
		return
	}

	h.logger.WithField("driver_id", driver.ID).Info("Driver registered")
	c.JSON(http.StatusCreated, driver)
}

// ListDrivers lists drivers
// GET /api/v1/drivers?active=true
func (h *FleetHandler) ListDrivers(c *gin.Context) {
	drivers, err := h.drivers.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondStoreError(c, h.logger, err, "driver not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drivers": drivers, "count": len(drivers)})
}

// GetDriver returns one driver
// GET /api/v1/drivers/:id
func (h *FleetHandler) GetDriver(c *gin.Context) {
	driver, err := h.drivers.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, h.logger, err, "driver not found")
		return
	}
	c.JSON(http.StatusOK, driver)
}

// UpdateDriver changes a driver's phone or active flag
// PATCH /api/v1/drivers/:id
func (h *FleetHandler) UpdateDriver(c *gin.Context) {
	var req models.UpdateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Phone != nil {
		phone, err := h.phone.Validate(*req.Phone)
		if err != nil {
			badRequest(c, err)
			return
		}
		req.Phone = &phone
	}

	driver, err := h.drivers.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondStoreError(c, h.logger, err, "driver not found")
		return
	}
	c.JSON(http.StatusOK, driver)
}
