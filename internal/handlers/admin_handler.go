package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/services"
)

// CronRunner exposes the scheduled generation job
type CronRunner interface {
	RunGenerateTripsNow(ctx context.Context) ([]*models.GenerationResult, error)
	GetJobStatus() services.CronStatus
}

// AdminHandler handles scheduler management endpoints
type AdminHandler struct {
	cron   CronRunner
	logger *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler. cron may be nil when the
// scheduler is disabled.
func NewAdminHandler(cron CronRunner, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{cron: cron, logger: logger}
}

// RunGenerateTrips runs the generation job for the configured days ahead
// POST /api/v1/admin/cron/generate-trips
func (h *AdminHandler) RunGenerateTrips(c *gin.Context) {
	if h.cron == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "trip generation scheduler is disabled", Code: "SCHEDULER_DISABLED"})
		return
	}

	results, err := h.cron.RunGenerateTripsNow(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	generated := 0
	for _, r := range results {
		generated += r.Generated
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Trip generation finished",
		"generated": generated,
		"days":      results,
	})
}

// CronStatus reports the scheduler's jobs
// GET /api/v1/admin/cron/status
func (h *AdminHandler) CronStatus(c *gin.Context) {
	if h.cron == nil {
		c.JSON(http.StatusOK, services.CronStatus{Jobs: []services.JobStatus{}})
		return
	}
	c.JSON(http.StatusOK, h.cron.GetJobStatus())
}
