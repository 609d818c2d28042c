package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"payledger/internal/service"
)

// maxWebhookBody bounds a webhook payload.
const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway notifications.
type WebhookHandler struct {
	webhookService *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received  bool   `json:"received"`
	PaymentID string `json:"payment_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Applied   bool   `json:"applied"`
}

// HandleWebhook handles POST /v1/payments/webhooks/:gateway
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	g := gatewayParam(c, "gateway")

	header, err := h.webhookService.SignatureHeader(g)
	if err != nil {
		respondError(c, err)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}

	outcome, err := h.webhookService.Handle(c.Request.Context(), g, payload, c.GetHeader(header))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, WebhookResponse{
		Received:  true,
		PaymentID: outcome.PaymentID,
		Status:    string(outcome.Status),
		Applied:   outcome.Applied,
	})
}
