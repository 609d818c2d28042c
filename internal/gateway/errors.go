package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable is returned on transport failures, auth failures,
	// timeouts and provider 5xx responses.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrInvalidRequest is returned when the request is rejected as malformed.
	ErrInvalidRequest = errors.New("invalid gateway request")

	// ErrInvalidSignature is returned when a webhook fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrPayoutUnsupported is returned by adapters without payout capability.
	ErrPayoutUnsupported = errors.New("payout not supported by gateway")

	// ErrUnsupportedGateway is returned for unknown or unconfigured gateways.
	ErrUnsupportedGateway = errors.New("unsupported gateway")
)

func invalidRequest(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}
