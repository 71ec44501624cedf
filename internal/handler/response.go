package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
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

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidRequestID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropoffLocation),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidPayer),
		errors.Is(err, service.ErrInvalidDisposition),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrInvalidCostInput):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrAlreadyAssigned),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidPaymentTransition),
		errors.Is(err, service.ErrInvalidDriverTransition),
		errors.Is(err, service.ErrOrderNotDispatchable),
		errors.Is(err, service.ErrOrderBusy),
		errors.Is(err, service.ErrRequestAlreadyResolved),
		errors.Is(err, service.ErrOrderTerminal),
		errors.Is(err, service.ErrDriverNotAvailable):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrDriverNotAssignedToOrder),
		errors.Is(err, service.ErrInvalidOTP):
		return http.StatusForbidden

	// Payment gating
	case errors.Is(err, service.ErrPaymentRequired):
		return http.StatusPaymentRequired

	// Upstream dependency failures
	case errors.Is(err, service.ErrDistanceProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNoRouteFound):
		return http.StatusUnprocessableEntity

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
