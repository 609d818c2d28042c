package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// Stripe is the card/wallet gateway. Payments are checkout sessions and
// payouts are transfers to connected accounts.
type Stripe struct {
	client        *client
	webhookSecret string
	now           func() time.Time
}

// NewStripe creates a STRIPE adapter.
func NewStripe(httpClient *http.Client, cfg Config, m *metrics.Metrics) *Stripe {
	return &Stripe{
		client:        newClient(httpClient, domain.GatewayStripe, cfg, m),
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
	}
}

func (g *Stripe) Name() domain.Gateway    { return domain.GatewayStripe }
func (g *Stripe) Provider() string        { return "" }
func (g *Stripe) SignatureHeader() string { return "Stripe-Signature" }

type stripeSessionRequest struct {
	Mode              string `json:"mode"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	ClientReferenceID string `json:"client_reference_id"`
	Customer          string `json:"customer"`
}

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// CreatePayment opens a hosted checkout session. Amounts go over the wire in
// minor units.
func (g *Stripe) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}

	var session stripeSession
	err := g.client.do(ctx, "create_payment", http.MethodPost, "/v1/checkout/sessions", stripeSessionRequest{
		Mode:              "payment",
		Amount:            req.Amount.Shift(2).Round(0).IntPart(),
		Currency:          strings.ToLower(req.Currency),
		ClientReferenceID: req.OrderRef,
		Customer:          req.PayerRef,
	}, &session)
	if err != nil {
		return nil, err
	}

	return &PaymentSession{
		ExternalRef:  session.ID,
		RedirectURL:  session.URL,
		Instructions: "Complete the payment on the Stripe checkout page.",
	}, nil
}

// GetStatus retrieves the checkout session. A paid session reports "paid",
// otherwise the session status.
func (g *Stripe) GetStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var session stripeSession
	if err := g.client.do(ctx, "get_status", http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(externalRef), nil, &session); err != nil {
		return nil, err
	}

	status := session.Status
	if session.PaymentStatus == "paid" {
		status = "paid"
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: status}, nil
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook checks a timestamped signature header. The event type is
// the native status.
func (g *Stripe) VerifyWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if !verifyTimestamped(g.webhookSecret, payload, signature, g.now()) {
		return nil, ErrInvalidSignature
	}

	var ev stripeEvent
	if err := decodeWebhook(payload, &ev); err != nil {
		return nil, err
	}

	return &WebhookEvent{
		EventID:      ev.ID,
		ExternalRef:  ev.Data.Object.ID,
		NativeStatus: ev.Type,
		Type:         ev.Type,
	}, nil
}

type stripeTransferRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Destination   string `json:"destination"`
	TransferGroup string `json:"transfer_group"`
	Description   string `json:"description,omitempty"`
}

// stripeTransfer carries no status; a transfer settles on creation and
// fails only by being reversed.
type stripeTransfer struct {
	ID       string `json:"id"`
	Reversed bool   `json:"reversed"`
}

func (t stripeTransfer) nativeStatus() string {
	if t.Reversed {
		return "reversed"
	}
	return "paid"
}

// CreatePayout transfers funds to the destination account.
func (g *Stripe) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*PayoutResult, error) {
	if err := validatePayout(req); err != nil {
		return nil, err
	}

	var transfer stripeTransfer
	err := g.client.do(ctx, "create_payout", http.MethodPost, "/v1/transfers", stripeTransferRequest{
		Amount:        req.Amount.Shift(2).Round(0).IntPart(),
		Currency:      strings.ToLower(req.Currency),
		Destination:   req.Destination.Account,
		TransferGroup: req.ReferenceNo,
		Description:   req.Notes,
	}, &transfer)
	if err != nil {
		return nil, err
	}

	return &PayoutResult{ExternalRef: transfer.ID, NativeStatus: transfer.nativeStatus()}, nil
}

// GetPayoutStatus retrieves a transfer.
func (g *Stripe) GetPayoutStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var transfer stripeTransfer
	if err := g.client.do(ctx, "get_payout_status", http.MethodGet, "/v1/transfers/"+url.PathEscape(externalRef), nil, &transfer); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: transfer.nativeStatus()}, nil
}
