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

// Regional providers behind LOCAL_PAYMENT.
const (
	ProviderMidtrans = "MIDTRANS"
	ProviderXendit   = "XENDIT"
	ProviderDoku     = "DOKU"
	ProviderFaspay   = "FASPAY"
)

// LocalPayment is the regional redirect gateway. The order reference doubles
// as the external reference, as regional providers key everything on it.
type LocalPayment struct {
	client        *client
	provider      string
	webhookSecret string
}

// NewLocalPayment creates a LOCAL_PAYMENT adapter for cfg.Provider.
func NewLocalPayment(httpClient *http.Client, cfg Config, m *metrics.Metrics) (*LocalPayment, error) {
	provider := strings.ToUpper(cfg.Provider)
	switch provider {
	case ProviderMidtrans, ProviderXendit, ProviderDoku, ProviderFaspay:
	case "":
		provider = ProviderMidtrans
	default:
		return nil, fmt.Errorf("local payment: unknown provider %q", cfg.Provider)
	}

	return &LocalPayment{
		client:        newClient(httpClient, domain.GatewayLocalPayment, cfg, m),
		provider:      provider,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (g *LocalPayment) Name() domain.Gateway    { return domain.GatewayLocalPayment }
func (g *LocalPayment) Provider() string        { return g.provider }
func (g *LocalPayment) SignatureHeader() string { return "X-Callback-Signature" }

type localChargeRequest struct {
	OrderID     string `json:"order_id"`
	GrossAmount string `json:"gross_amount"`
	Currency    string `json:"currency"`
	CustomerID  string `json:"customer_id"`
	Provider    string `json:"provider"`
}

type localChargeResponse struct {
	Token        string `json:"token"`
	RedirectURL  string `json:"redirect_url"`
	Instructions string `json:"payment_instructions"`
}

// CreatePayment opens a redirect transaction.
func (g *LocalPayment) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}

	var resp localChargeResponse
	err := g.client.do(ctx, "create_payment", http.MethodPost, "/transactions", localChargeRequest{
		OrderID:     req.OrderRef,
		GrossAmount: req.Amount.String(),
		Currency:    req.Currency,
		CustomerID:  req.PayerRef,
		Provider:    strings.ToLower(g.provider),
	}, &resp)
	if err != nil {
		return nil, err
	}

	instructions := resp.Instructions
	if instructions == "" {
		instructions = "Follow the redirect to complete payment."
	}

	return &PaymentSession{
		ExternalRef:  req.OrderRef,
		RedirectURL:  resp.RedirectURL,
		Instructions: instructions,
	}, nil
}

type localStatusResponse struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
}

// GetStatus fetches the transaction status by order reference.
func (g *LocalPayment) GetStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var resp localStatusResponse
	path := "/transactions/" + url.PathEscape(externalRef) + "/status"
	if err := g.client.do(ctx, "get_status", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: resp.TransactionStatus}, nil
}

type localNotification struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// VerifyWebhook checks the HMAC of the raw notification body.
func (g *LocalPayment) VerifyWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if !verifyHMAC(g.webhookSecret, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var n localNotification
	if err := decodeWebhook(payload, &n); err != nil {
		return nil, err
	}

	status := n.TransactionStatus
	if n.FraudStatus == "deny" {
		status = "deny"
	}

	return &WebhookEvent{
		EventID:      n.TransactionID + ":" + n.TransactionStatus,
		ExternalRef:  n.OrderID,
		NativeStatus: status,
		Type:         "notification",
	}, nil
}

type localPayoutRequest struct {
	ReferenceNo        string `json:"reference_no"`
	BeneficiaryName    string `json:"beneficiary_name"`
	BeneficiaryAccount string `json:"beneficiary_account"`
	BeneficiaryBank    string `json:"beneficiary_bank"`
	BeneficiaryEmail   string `json:"beneficiary_email"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	Notes              string `json:"notes"`
}

type localPayoutResponse struct {
	ReferenceNo string `json:"reference_no"`
	Status      string `json:"status"`
}

// CreatePayout sends a bank disbursement.
func (g *LocalPayment) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*PayoutResult, error) {
	if err := validatePayout(req); err != nil {
		return nil, err
	}

	var resp localPayoutResponse
	err := g.client.do(ctx, "create_payout", http.MethodPost, "/payouts", localPayoutRequest{
		ReferenceNo:        req.ReferenceNo,
		BeneficiaryName:    req.Destination.Name,
		BeneficiaryAccount: req.Destination.Account,
		BeneficiaryBank:    req.Destination.Bank,
		BeneficiaryEmail:   req.Destination.Email,
		Amount:             req.Amount.String(),
		Currency:           req.Currency,
		Notes:              req.Notes,
	}, &resp)
	if err != nil {
		return nil, err
	}

	ref := resp.ReferenceNo
	if ref == "" {
		ref = req.ReferenceNo
	}
	return &PayoutResult{ExternalRef: ref, NativeStatus: resp.Status}, nil
}

// GetPayoutStatus fetches a disbursement by reference number.
func (g *LocalPayment) GetPayoutStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var resp localPayoutResponse
	if err := g.client.do(ctx, "get_payout_status", http.MethodGet, "/payouts/"+url.PathEscape(externalRef), nil, &resp); err != nil {
		return nil, err
	}
	return &StatusResult{ExternalRef: externalRef, NativeStatus: resp.Status}, nil
}
