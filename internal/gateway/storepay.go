package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// StorePay serves the store-native pay variants (AMAZON, APPLE, GOOGLE).
// They share one purchase API shape and cannot disburse funds.
type StorePay struct {
	client        *client
	gateway       domain.Gateway
	webhookSecret string
}

// NewStorePay creates an adapter for one store-native gateway.
func NewStorePay(httpClient *http.Client, g domain.Gateway, cfg Config, m *metrics.Metrics) (*StorePay, error) {
	switch g {
	case domain.GatewayAmazon, domain.GatewayApple, domain.GatewayGoogle:
	default:
		return nil, fmt.Errorf("store pay: %s is not a store-native gateway", g)
	}

	return &StorePay{
		client:        newClient(httpClient, g, cfg, m),
		gateway:       g,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (g *StorePay) Name() domain.Gateway    { return g.gateway }
func (g *StorePay) Provider() string        { return "" }
func (g *StorePay) SignatureHeader() string { return "X-Store-Signature" }

type storePurchaseRequest struct {
	OrderID  string `json:"order_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	BuyerID  string `json:"buyer_id"`
}

type storePurchase struct {
	PurchaseID  string `json:"purchase_id"`
	CheckoutURL string `json:"checkout_url"`
	State       string `json:"state"`
}

// CreatePayment starts a store checkout.
func (g *StorePay) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}

	var purchase storePurchase
	err := g.client.do(ctx, "create_payment", http.MethodPost, "/purchases", storePurchaseRequest{
		OrderID:  req.OrderRef,
		Amount:   req.Amount.String(),
		Currency: req.Currency,
		BuyerID:  req.PayerRef,
	}, &purchase)
	if err != nil {
		return nil, err
	}

	return &PaymentSession{
		ExternalRef:  purchase.PurchaseID,
		RedirectURL:  purchase.CheckoutURL,
		Instructions: "Confirm the purchase in the store sheet.",
	}, nil
}

// GetStatus retrieves the purchase state.
func (g *StorePay) GetStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var purchase storePurchase
	if err := g.client.do(ctx, "get_status", http.MethodGet, "/purchases/"+url.PathEscape(externalRef), nil, &purchase); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: purchase.State}, nil
}

type storeNotification struct {
	NotificationID string `json:"notification_id"`
	Type           string `json:"notification_type"`
	PurchaseID     string `json:"purchase_id"`
	State          string `json:"state"`
}

// VerifyWebhook checks the HMAC of the raw body.
func (g *StorePay) VerifyWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if !verifyHMAC(g.webhookSecret, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var n storeNotification
	if err := decodeWebhook(payload, &n); err != nil {
		return nil, err
	}

	return &WebhookEvent{
		EventID:      n.NotificationID,
		ExternalRef:  n.PurchaseID,
		NativeStatus: n.State,
		Type:         n.Type,
	}, nil
}

// CreatePayout is not supported by store-native gateways.
func (g *StorePay) CreatePayout(context.Context, CreatePayoutRequest) (*PayoutResult, error) {
	return nil, fmt.Errorf("%w: %s", ErrPayoutUnsupported, g.gateway)
}

// GetPayoutStatus is not supported by store-native gateways.
func (g *StorePay) GetPayoutStatus(context.Context, string) (*StatusResult, error) {
	return nil, fmt.Errorf("%w: %s", ErrPayoutUnsupported, g.gateway)
}
