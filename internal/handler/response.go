package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/repository"
	"payledger/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.JSON(code, ErrorResponse{Error: msg})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/gateway/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrEntityNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrBeneficiaryNotFound),
		errors.Is(err, service.ErrPayoutNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidPayerID),
		errors.Is(err, service.ErrInvalidEntityID),
		errors.Is(err, service.ErrInvalidPurchaseKind),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPaymentID),
		errors.Is(err, service.ErrInvalidPaymentAmount),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, gateway.ErrUnsupportedGateway),
		errors.Is(err, gateway.ErrInvalidRequest),
		errors.Is(err, gateway.ErrInvalidSignature):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, repository.ErrDuplicateExternalRef):
		return http.StatusConflict

	// Business rule errors
	case errors.Is(err, service.ErrAmountUndetermined),
		errors.Is(err, gateway.ErrPayoutUnsupported):
		return http.StatusUnprocessableEntity

	// Upstream gateway errors
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// gatewayParam reads a gateway path parameter case-insensitively.
func gatewayParam(c *gin.Context, name string) domain.Gateway {
	return domain.Gateway(strings.ToUpper(c.Param(name)))
}
