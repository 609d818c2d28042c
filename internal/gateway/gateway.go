// Package gateway abstracts the external payment gateways behind one
// interface. Adapters speak each provider's HTTP API and report statuses in
// the provider's own vocabulary; mapping to ledger statuses happens in the
// service layer.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"payledger/internal/domain"
)

// Gateway is implemented by every payment gateway adapter.
// Implementations are stateless and safe for concurrent use.
type Gateway interface {
	// Name returns the gateway this adapter serves.
	Name() domain.Gateway

	// Provider returns the sub-provider, empty when the gateway has none.
	Provider() string

	// SignatureHeader is the HTTP header carrying webhook signatures.
	SignatureHeader() string

	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error)
	GetStatus(ctx context.Context, externalRef string) (*StatusResult, error)
	VerifyWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
	CreatePayout(ctx context.Context, req CreatePayoutRequest) (*PayoutResult, error)
	GetPayoutStatus(ctx context.Context, externalRef string) (*StatusResult, error)
}

// CreatePaymentRequest contains the parameters for opening a remote transaction.
type CreatePaymentRequest struct {
	Amount   decimal.Decimal
	Currency string
	PayerRef string
	OrderRef string
}

// PaymentSession is what the payer needs to complete a payment.
type PaymentSession struct {
	ExternalRef  string
	RedirectURL  string
	Instructions string
}

// StatusResult carries a status in the provider's vocabulary.
type StatusResult struct {
	ExternalRef  string
	NativeStatus string
}

// WebhookEvent is a verified webhook notification.
type WebhookEvent struct {
	EventID      string
	ExternalRef  string
	NativeStatus string
	Type         string
}

// CreatePayoutRequest contains the parameters for a disbursement.
type CreatePayoutRequest struct {
	Amount      decimal.Decimal
	Currency    string
	ReferenceNo string
	Destination domain.Destination
	Notes       string
}

// PayoutResult is the gateway's answer to a payout request.
type PayoutResult struct {
	ExternalRef  string
	NativeStatus string
}

// Config holds the settings shared by all adapters.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Currency      string
	Provider      string
}

func validatePayment(req CreatePaymentRequest) error {
	if !req.Amount.IsPositive() {
		return invalidRequest("amount must be positive")
	}
	if req.Currency == "" {
		return invalidRequest("currency is required")
	}
	return nil
}

func validatePayout(req CreatePayoutRequest) error {
	if !req.Amount.IsPositive() {
		return invalidRequest("amount must be positive")
	}
	if req.Currency == "" {
		return invalidRequest("currency is required")
	}
	if req.ReferenceNo == "" {
		return invalidRequest("reference number is required")
	}
	return nil
}
