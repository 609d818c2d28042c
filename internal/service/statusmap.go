package service

import (
	"strings"

	"payledger/internal/domain"
)

// StatusTable maps a gateway's native status vocabulary to ledger statuses.
// Lookups are case-insensitive. An empty status carries no verdict and
// maps to PENDING; any other unlisted status maps to FAILED.
type StatusTable struct {
	success []string
	pending []string
	expired []string
}

// Map returns the ledger status for native.
func (t StatusTable) Map(native string) domain.PaymentStatus {
	s := strings.ToLower(strings.TrimSpace(native))
	switch {
	case s == "":
		return domain.PaymentStatusPending
	case contains(t.success, s):
		return domain.PaymentStatusSuccess
	case contains(t.pending, s):
		return domain.PaymentStatusPending
	case contains(t.expired, s):
		return domain.PaymentStatusExpired
	default:
		return domain.PaymentStatusFailed
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var paymentStatusTables = map[domain.Gateway]StatusTable{
	domain.GatewayLocalPayment: {
		success: []string{"capture", "settlement", "completed"},
		pending: []string{"pending", "authorize"},
	},
	domain.GatewayStripe: {
		success: []string{"paid", "succeeded", "checkout.session.completed", "checkout.session.async_payment_succeeded", "payment_intent.succeeded"},
		pending: []string{"open", "complete", "pending", "processing", "unpaid", "requires_action", "payment_intent.processing", "payment_intent.created"},
		expired: []string{"expired", "checkout.session.expired"},
	},
	domain.GatewayPayPal: {
		success: []string{"completed"},
		pending: []string{"created", "saved", "approved", "payer_action_required"},
	},
	domain.GatewayCrypto: {
		success: []string{"confirmed", "paid", "completed"},
		pending: []string{"new", "pending", "confirming"},
		expired: []string{"expired"},
	},
}

// storeStatusTable is shared by the store-native gateways.
var storeStatusTable = StatusTable{
	success: []string{"purchased", "completed", "success"},
	pending: []string{"pending", "processing"},
}

// PaymentStatusTable returns the payment table of gateway g.
func PaymentStatusTable(g domain.Gateway) StatusTable {
	if t, ok := paymentStatusTables[g]; ok {
		return t
	}
	return storeStatusTable
}

// PayoutStatusTable maps disbursement statuses of every gateway.
var PayoutStatusTable = StatusTable{
	success: []string{"completed", "success", "processed", "paid"},
	pending: []string{"pending", "processing", "queued", "in_transit", "created", "new", "approved"},
}
