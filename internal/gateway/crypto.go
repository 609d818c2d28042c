package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// Crypto processors behind CRYPTO.
const (
	ProviderCoinGate = "COINGATE"
	ProviderCoinbase = "COINBASE"
	ProviderBitPay   = "BITPAY"
)

// Crypto is the cryptocurrency processor gateway.
type Crypto struct {
	client        *client
	provider      string
	webhookSecret string
}

// NewCrypto creates a CRYPTO adapter for cfg.Provider.
func NewCrypto(httpClient *http.Client, cfg Config, m *metrics.Metrics) (*Crypto, error) {
	provider := strings.ToUpper(cfg.Provider)
	switch provider {
	case ProviderCoinGate, ProviderCoinbase, ProviderBitPay:
	case "":
		provider = ProviderCoinGate
	default:
		return nil, fmt.Errorf("crypto: unknown provider %q", cfg.Provider)
	}

	return &Crypto{
		client:        newClient(httpClient, domain.GatewayCrypto, cfg, m),
		provider:      provider,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (g *Crypto) Name() domain.Gateway    { return domain.GatewayCrypto }
func (g *Crypto) Provider() string        { return g.provider }
func (g *Crypto) SignatureHeader() string { return "X-Crypto-Signature" }

type cryptoChargeRequest struct {
	OrderID       string `json:"order_id"`
	PriceAmount   string `json:"price_amount"`
	PriceCurrency string `json:"price_currency"`
	CustomerID    string `json:"customer_id"`
	Provider      string `json:"provider"`
}

type cryptoCharge struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url"`
	Address    string `json:"address"`
}

// CreatePayment requests a deposit address for the order.
func (g *Crypto) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}

	var charge cryptoCharge
	err := g.client.do(ctx, "create_payment", http.MethodPost, "/payments", cryptoChargeRequest{
		OrderID:       req.OrderRef,
		PriceAmount:   req.Amount.String(),
		PriceCurrency: req.Currency,
		CustomerID:    req.PayerRef,
		Provider:      strings.ToLower(g.provider),
	}, &charge)
	if err != nil {
		return nil, err
	}

	return &PaymentSession{
		ExternalRef:  charge.ID,
		RedirectURL:  charge.PaymentURL,
		Instructions: fmt.Sprintf("Send %s %s to address %s.", req.Amount.String(), req.Currency, charge.Address),
	}, nil
}

// GetStatus retrieves the charge status.
func (g *Crypto) GetStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var charge cryptoCharge
	if err := g.client.do(ctx, "get_status", http.MethodGet, "/payments/"+url.PathEscape(externalRef), nil, &charge); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: charge.Status}, nil
}

type cryptoNotification struct {
	EventID       string `json:"event_id"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// VerifyWebhook checks the HMAC of the raw body.
func (g *Crypto) VerifyWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if !verifyHMAC(g.webhookSecret, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var n cryptoNotification
	if err := decodeWebhook(payload, &n); err != nil {
		return nil, err
	}

	eventID := n.EventID
	if eventID == "" {
		eventID = n.TransactionID + ":" + n.Status
	}

	return &WebhookEvent{
		EventID:      eventID,
		ExternalRef:  n.TransactionID,
		NativeStatus: n.Status,
		Type:         "payment",
	}, nil
}

type cryptoPayoutRequest struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Address   string `json:"address"`
}

// CreatePayout withdraws to the destination wallet address.
func (g *Crypto) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*PayoutResult, error) {
	if err := validatePayout(req); err != nil {
		return nil, err
	}
	if req.Destination.Account == "" {
		return nil, invalidRequest("crypto payouts need a wallet address")
	}

	var charge cryptoCharge
	err := g.client.do(ctx, "create_payout", http.MethodPost, "/payouts", cryptoPayoutRequest{
		Reference: req.ReferenceNo,
		Amount:    req.Amount.String(),
		Currency:  req.Currency,
		Address:   req.Destination.Account,
	}, &charge)
	if err != nil {
		return nil, err
	}

	return &PayoutResult{ExternalRef: charge.ID, NativeStatus: charge.Status}, nil
}

// GetPayoutStatus retrieves a withdrawal.
func (g *Crypto) GetPayoutStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var charge cryptoCharge
	if err := g.client.do(ctx, "get_payout_status", http.MethodGet, "/payouts/"+url.PathEscape(externalRef), nil, &charge); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: charge.Status}, nil
}
