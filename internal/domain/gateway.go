package domain

// Gateway identifies an external payment or payout processor.
type Gateway string

const (
	GatewayLocalPayment Gateway = "LOCAL_PAYMENT"
	GatewayStripe       Gateway = "STRIPE"
	GatewayPayPal       Gateway = "PAYPAL"
	GatewayCrypto       Gateway = "CRYPTO"
	GatewayAmazon       Gateway = "AMAZON"
	GatewayApple        Gateway = "APPLE"
	GatewayGoogle       Gateway = "GOOGLE"
)

// Gateways lists every gateway the ledger knows about, in column order.
var Gateways = []Gateway{
	GatewayLocalPayment,
	GatewayStripe,
	GatewayPayPal,
	GatewayCrypto,
	GatewayAmazon,
	GatewayApple,
	GatewayGoogle,
}

// Valid reports whether g is a known gateway.
func (g Gateway) Valid() bool {
	return g.RefColumn() != ""
}

// RefColumn returns the column holding this gateway's external reference
// on the payments and payouts tables.
func (g Gateway) RefColumn() string {
	switch g {
	case GatewayLocalPayment:
		return "midtrans_id"
	case GatewayStripe:
		return "stripe_id"
	case GatewayPayPal:
		return "paypal_id"
	case GatewayCrypto:
		return "crypto_id"
	case GatewayAmazon:
		return "amazon_id"
	case GatewayApple:
		return "apple_id"
	case GatewayGoogle:
		return "google_id"
	default:
		return ""
	}
}

// DefaultCurrency is the currency a gateway charges in unless configured otherwise.
func (g Gateway) DefaultCurrency() string {
	switch g {
	case GatewayLocalPayment:
		return "IDR"
	case GatewayCrypto:
		return "BTC"
	default:
		return "USD"
	}
}
