package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.Ledger.PendingTTL)
	assert.Equal(t, 30*time.Second, cfg.Ledger.SweepInterval)
	assert.Equal(t, 200, cfg.Ledger.SweepBatch)
	assert.Equal(t, 5*time.Minute, cfg.Ledger.SweepRetryBackoff)
	assert.Equal(t, 60*time.Second, cfg.Ledger.PayoutCacheTTL)
	assert.Zero(t, cfg.Ledger.PayoutPollInterval)
	assert.Equal(t, 10*time.Second, cfg.Ledger.GatewayTimeout)
	assert.Len(t, cfg.Gateways.Enabled, 7)
	assert.Equal(t, "MIDTRANS", cfg.Gateways.LocalProvider)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestLoad_GatewayOverrides(t *testing.T) {
	t.Setenv("ENABLED_GATEWAYS", " stripe, paypal ,")
	t.Setenv("STRIPE_API_KEY", "sk_test")
	t.Setenv("STRIPE_CURRENCY", "EUR")
	t.Setenv("PAYMENT_PENDING_TTL", "5m")
	t.Setenv("EXPIRY_SWEEP_BATCH", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"STRIPE", "PAYPAL"}, cfg.Gateways.Enabled)
	assert.Equal(t, "sk_test", cfg.Gateways.Settings["STRIPE"].APIKey)
	assert.Equal(t, "EUR", cfg.Gateways.Settings["STRIPE"].Currency)
	assert.Equal(t, 5*time.Minute, cfg.Ledger.PendingTTL)
	assert.Equal(t, 200, cfg.Ledger.SweepBatch)
}
