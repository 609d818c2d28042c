package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payledger/internal/domain"
	"payledger/internal/middleware"
	"payledger/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreatePaymentRequest is the HTTP request body for starting a purchase.
type CreatePaymentRequest struct {
	Kind       string              `json:"kind"`
	EntityKind string              `json:"entity_kind"`
	EntityID   string              `json:"entity_id"`
	Quantity   int                 `json:"quantity"`
	Gateway    string              `json:"gateway"`
	Amount     decimal.NullDecimal `json:"amount"`
}

// CreatePaymentResponse is the HTTP response for a new payment.
type CreatePaymentResponse struct {
	PaymentID    string          `json:"payment_id"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
}

// PaymentResponse is the HTTP response for payment lookups.
type PaymentResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	EntityKind  string          `json:"entity_kind"`
	EntityID    string          `json:"entity_id"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Gateway     string          `json:"gateway"`
	Provider    string          `json:"provider,omitempty"`
	ExternalRef string          `json:"external_ref"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StatusResponse is the HTTP response for status polls.
type StatusResponse struct {
	Status string `json:"status"`
}

// CreatePayment handles POST /v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	kind := domain.PurchaseKind(strings.ToUpper(req.Kind))
	if req.EntityKind != "" && domain.EntityKind(strings.ToUpper(req.EntityKind)) != kind.EntityKind() {
		respondError(c, service.ErrInvalidPurchaseKind)
		return
	}

	result, err := h.paymentService.CreatePayment(c.Request.Context(), service.CreatePaymentRequest{
		PayerID:        middleware.Principal(c),
		Kind:           kind,
		EntityID:       req.EntityID,
		Quantity:       req.Quantity,
		Gateway:        domain.Gateway(strings.ToUpper(req.Gateway)),
		DeclaredAmount: req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CreatePaymentResponse{
		PaymentID:    result.Payment.ID,
		Status:       string(result.Payment.Status),
		Amount:       result.Payment.Amount,
		Currency:     result.Payment.Currency,
		RedirectURL:  result.RedirectURL,
		Instructions: result.Instructions,
	})
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PaymentResponse{
		ID:          payment.ID,
		Kind:        string(payment.Kind),
		EntityKind:  string(payment.EntityKind),
		EntityID:    payment.EntityID,
		Quantity:    payment.Quantity,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Status:      string(payment.Status),
		Gateway:     string(payment.Gateway),
		Provider:    payment.Provider,
		ExternalRef: payment.ExternalRef,
		CreatedAt:   payment.CreatedAt,
		UpdatedAt:   payment.UpdatedAt,
	})
}

// GetPaymentStatus handles GET /v1/payments/:id/:externalRef/status where
// :id names the gateway. gin allows one wildcard name per path segment.
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	status, err := h.paymentService.GetPaymentStatus(
		c.Request.Context(),
		gatewayParam(c, "id"),
		c.Param("externalRef"),
		middleware.Principal(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, StatusResponse{Status: string(status)})
}
