package gateway

import (
	"fmt"

	"payledger/internal/domain"
)

// Registry maps each configured gateway to its adapter. It is built once at
// startup and only read afterwards.
type Registry struct {
	adapters map[domain.Gateway]Gateway
}

// NewRegistry creates a registry from adapters. A gateway registered twice
// keeps the last adapter.
func NewRegistry(adapters ...Gateway) *Registry {
	r := &Registry{adapters: make(map[domain.Gateway]Gateway, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for g.
func (r *Registry) Get(g domain.Gateway) (Gateway, error) {
	if a, ok := r.adapters[g]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, g)
}

// Names lists the configured gateways in declaration order.
func (r *Registry) Names() []domain.Gateway {
	names := make([]domain.Gateway, 0, len(r.adapters))
	for _, g := range domain.Gateways {
		if _, ok := r.adapters[g]; ok {
			names = append(names, g)
		}
	}
	return names
}

// Ensure adapters implement Gateway.
var (
	_ Gateway = (*LocalPayment)(nil)
	_ Gateway = (*Stripe)(nil)
	_ Gateway = (*PayPal)(nil)
	_ Gateway = (*Crypto)(nil)
	_ Gateway = (*StorePay)(nil)
)
