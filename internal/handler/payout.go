package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payledger/internal/domain"
	"payledger/internal/middleware"
	"payledger/internal/service"
)

// PayoutHandler handles HTTP requests for payouts.
type PayoutHandler struct {
	payoutService *service.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutService *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutService: payoutService}
}

// CreatePayoutRequest is the HTTP request body for a payout.
type CreatePayoutRequest struct {
	BeneficiaryID string          `json:"beneficiary_id"`
	Amount        decimal.Decimal `json:"amount"`
	Gateway       string          `json:"gateway"`
	Notes         string          `json:"notes"`
}

// PayoutResponse is the HTTP response for a new payout.
type PayoutResponse struct {
	PayoutID    string `json:"payout_id"`
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"`
}

// PayoutStatusResponse is the HTTP response for payout status lookups.
type PayoutStatusResponse struct {
	Status       string `json:"status"`
	NativeStatus string `json:"native_status,omitempty"`
}

// CreatePayout handles POST /v1/payouts
func (h *PayoutHandler) CreatePayout(c *gin.Context) {
	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.BeneficiaryID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "beneficiary_id is required"})
		return
	}

	payout, err := h.payoutService.CreatePayout(c.Request.Context(), service.CreatePayoutRequest{
		OwnerID:       middleware.Principal(c),
		BeneficiaryID: req.BeneficiaryID,
		Amount:        req.Amount,
		Gateway:       domain.Gateway(strings.ToUpper(req.Gateway)),
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, PayoutResponse{
		PayoutID:    payout.ID,
		ExternalRef: payout.ExternalRef,
		Status:      string(payout.Status),
	})
}

// GetPayoutStatus handles GET /v1/payouts/:externalRef/status
func (h *PayoutHandler) GetPayoutStatus(c *gin.Context) {
	status, err := h.payoutService.GetPayoutStatus(c.Request.Context(), middleware.Principal(c), c.Param("externalRef"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PayoutStatusResponse{
		Status:       string(status.Status),
		NativeStatus: status.NativeStatus,
	})
}
