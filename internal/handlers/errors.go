package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/database"
	"github.com/smarttransit/busline-backend/internal/middleware"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/services"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Seats   []string `json:"seats,omitempty"`
}

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:           http.StatusNotFound,
	services.KindAccessDenied:       http.StatusForbidden,
	services.KindUnauthenticated:    http.StatusUnauthorized,
	services.KindTripUnavailable:    http.StatusBadRequest,
	services.KindSeatsUnavailable:   http.StatusBadRequest,
	services.KindSchedulingConflict: http.StatusBadRequest,
	services.KindDriverInactive:     http.StatusBadRequest,
	services.KindBusInactive:        http.StatusBadRequest,
	services.KindAlreadyCancelled:   http.StatusBadRequest,
	services.KindValidation:         http.StatusBadRequest,
	services.KindActiveBookings:     http.StatusConflict,
	services.KindConflict:           http.StatusConflict,
	services.KindStore:              http.StatusInternalServerError,
}

// respondError writes an engine error with the status its kind maps to
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = &services.Error{Kind: services.KindStore, Message: "internal error", Err: err}
	}

	status, ok := kindStatus[svcErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := ErrorResponse{Message: svcErr.Message, Code: string(svcErr.Kind), Seats: svcErr.Seats}
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		// store messages stay in the log
		body.Message = "internal error"
	}
	c.JSON(status, body)
}

// respondStoreError maps repository errors for the thin CRUD endpoints
func respondStoreError(c *gin.Context, logger *logrus.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: notFound, Code: string(services.KindNotFound)})
	case errors.Is(err, database.ErrDuplicate):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "record already exists", Code: string(services.KindConflict)})
	case errors.Is(err, database.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "referenced record does not exist", Code: string(services.KindValidation)})
	default:
		respondError(c, logger, err)
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: string(services.KindValidation)})
}

// principal reads the caller set by AuthMiddleware
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "authentication required",
			Code:    string(services.KindUnauthenticated),
		})
	}
	return p, ok
}
