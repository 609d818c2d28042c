package gateway

import (
	"context"
	"net/http"
	"net/url"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// PayPal is the wallet broker gateway: payments are orders the payer
// approves on PayPal, payouts are single-item payout batches.
type PayPal struct {
	client        *client
	webhookSecret string
}

// NewPayPal creates a PAYPAL adapter.
func NewPayPal(httpClient *http.Client, cfg Config, m *metrics.Metrics) *PayPal {
	return &PayPal{
		client:        newClient(httpClient, domain.GatewayPayPal, cfg, m),
		webhookSecret: cfg.WebhookSecret,
	}
}

func (g *PayPal) Name() domain.Gateway    { return domain.GatewayPayPal }
func (g *PayPal) Provider() string        { return "" }
func (g *PayPal) SignatureHeader() string { return "Paypal-Transmission-Sig" }

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string      `json:"reference_id"`
	CustomID    string      `json:"custom_id,omitempty"`
	Amount      paypalMoney `json:"amount"`
}

type paypalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrder struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

// CreatePayment creates an order awaiting payer approval.
func (g *PayPal) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}

	var order paypalOrder
	err := g.client.do(ctx, "create_payment", http.MethodPost, "/v2/checkout/orders", paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.OrderRef,
			CustomID:    req.PayerRef,
			Amount:      paypalMoney{CurrencyCode: req.Currency, Value: req.Amount.StringFixed(2)},
		}},
	}, &order)
	if err != nil {
		return nil, err
	}

	var approveURL string
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}

	return &PaymentSession{
		ExternalRef:  order.ID,
		RedirectURL:  approveURL,
		Instructions: "Redirect to PayPal for approval.",
	}, nil
}

// GetStatus retrieves the order status.
func (g *PayPal) GetStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var order paypalOrder
	if err := g.client.do(ctx, "get_status", http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(externalRef), nil, &order); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: order.Status}, nil
}

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"resource"`
}

// VerifyWebhook checks the transmission signature and reads the order
// status from the event resource.
func (g *PayPal) VerifyWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if !verifyHMAC(g.webhookSecret, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var ev paypalEvent
	if err := decodeWebhook(payload, &ev); err != nil {
		return nil, err
	}

	return &WebhookEvent{
		EventID:      ev.ID,
		ExternalRef:  ev.Resource.ID,
		NativeStatus: ev.Resource.Status,
		Type:         ev.EventType,
	}, nil
}

type paypalPayoutItem struct {
	RecipientType string      `json:"recipient_type"`
	Amount        paypalMoney `json:"amount"`
	Receiver      string      `json:"receiver"`
	Note          string      `json:"note,omitempty"`
	SenderItemID  string      `json:"sender_item_id"`
}

type paypalPayoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject"`
	} `json:"sender_batch_header"`
	Items []paypalPayoutItem `json:"items"`
}

type paypalPayoutBatch struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

// CreatePayout sends money to the destination's PayPal email.
func (g *PayPal) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*PayoutResult, error) {
	if err := validatePayout(req); err != nil {
		return nil, err
	}
	if req.Destination.Email == "" {
		return nil, invalidRequest("paypal payouts need a receiver email")
	}

	body := paypalPayoutRequest{
		Items: []paypalPayoutItem{{
			RecipientType: "EMAIL",
			Amount:        paypalMoney{CurrencyCode: req.Currency, Value: req.Amount.StringFixed(2)},
			Receiver:      req.Destination.Email,
			Note:          req.Notes,
			SenderItemID:  req.ReferenceNo,
		}},
	}
	body.SenderBatchHeader.SenderBatchID = req.ReferenceNo
	body.SenderBatchHeader.EmailSubject = "You have a payout"

	var batch paypalPayoutBatch
	if err := g.client.do(ctx, "create_payout", http.MethodPost, "/v1/payments/payouts", body, &batch); err != nil {
		return nil, err
	}

	return &PayoutResult{
		ExternalRef:  batch.BatchHeader.PayoutBatchID,
		NativeStatus: batch.BatchHeader.BatchStatus,
	}, nil
}

// GetPayoutStatus retrieves the payout batch status.
func (g *PayPal) GetPayoutStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var batch paypalPayoutBatch
	if err := g.client.do(ctx, "get_payout_status", http.MethodGet, "/v1/payments/payouts/"+url.PathEscape(externalRef), nil, &batch); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: batch.BatchHeader.BatchStatus}, nil
}
