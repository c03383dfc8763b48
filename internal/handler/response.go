package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/repository"
	"courier/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidSenderID),
		errors.Is(err, service.ErrInvalidDeliveryID),
		errors.Is(err, service.ErrInvalidCourierID),
		errors.Is(err, service.ErrInvalidMissionID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropoffLocation),
		errors.Is(err, service.ErrInvalidPackageWeight),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDeliveryNotPending),
		errors.Is(err, service.ErrDeliveryAlreadyAssigned),
		errors.Is(err, service.ErrDeliveryNotApproved),
		errors.Is(err, service.ErrMissionAlreadyExists),
		errors.Is(err, service.ErrDeliveryAlreadyCancelled),
		errors.Is(err, service.ErrDeliveryCannotBeCancelled),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrCourierNotAssigned):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, service.ErrNoCourierAvailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
