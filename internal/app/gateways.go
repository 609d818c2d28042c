package app

import (
	"fmt"
	"net/http"

	"payledger/internal/config"
	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/metrics"
)

// NewGatewayRegistry builds one adapter per enabled gateway. Sub-providers
// for LOCAL_PAYMENT and CRYPTO are fixed here for the life of the process.
func NewGatewayRegistry(cfg config.GatewaysConfig, httpClient *http.Client, m *metrics.Metrics) (*gateway.Registry, map[domain.Gateway]string, error) {
	adapters := make([]gateway.Gateway, 0, len(cfg.Enabled))
	currencies := make(map[domain.Gateway]string, len(cfg.Enabled))

	for _, name := range cfg.Enabled {
		g := domain.Gateway(name)
		if !g.Valid() {
			return nil, nil, fmt.Errorf("unknown gateway %q in ENABLED_GATEWAYS", name)
		}

		settings := cfg.Settings[name]
		gcfg := gateway.Config{
			BaseURL:       settings.BaseURL,
			APIKey:        settings.APIKey,
			WebhookSecret: settings.WebhookSecret,
			Currency:      settings.Currency,
		}
		if settings.Currency != "" {
			currencies[g] = settings.Currency
		}

		adapter, err := newAdapter(g, gcfg, cfg, httpClient, m)
		if err != nil {
			return nil, nil, err
		}
		adapters = append(adapters, adapter)
	}

	return gateway.NewRegistry(adapters...), currencies, nil
}

func newAdapter(g domain.Gateway, gcfg gateway.Config, cfg config.GatewaysConfig, httpClient *http.Client, m *metrics.Metrics) (gateway.Gateway, error) {
	switch g {
	case domain.GatewayLocalPayment:
		gcfg.Provider = cfg.LocalProvider
		return gateway.NewLocalPayment(httpClient, gcfg, m)
	case domain.GatewayStripe:
		return gateway.NewStripe(httpClient, gcfg, m), nil
	case domain.GatewayPayPal:
		return gateway.NewPayPal(httpClient, gcfg, m), nil
	case domain.GatewayCrypto:
		gcfg.Provider = cfg.CryptoProvider
		return gateway.NewCrypto(httpClient, gcfg, m)
	default:
		return gateway.NewStorePay(httpClient, g, gcfg, m)
	}
}
