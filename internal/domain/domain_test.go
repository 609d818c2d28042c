package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	statuses := []PaymentStatus{PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusExpired}

	for _, from := range statuses {
		for _, to := range statuses {
			want := from == PaymentStatusPending && to != PaymentStatusPending
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(PaymentStatusPending, "REFUNDED"))
}

func TestPaymentStatus_Terminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.Terminal())
	assert.True(t, PaymentStatusSuccess.Terminal())
	assert.True(t, PaymentStatusFailed.Terminal())
	assert.True(t, PaymentStatusExpired.Terminal())
}

func TestPurchaseKind(t *testing.T) {
	assert.Equal(t, EntityKindShopItem, PurchaseKindItem.EntityKind())
	assert.Equal(t, EntityKindCourse, PurchaseKindCourse.EntityKind())
	assert.Equal(t, EntityKindSubscriptionPlan, PurchaseKindSubscription.EntityKind())
	assert.Equal(t, EntityKind(""), PurchaseKind("GIFT").EntityKind())

	assert.True(t, PurchaseKindItem.ReservesInventory())
	assert.False(t, PurchaseKindCourse.ReservesInventory())
	assert.False(t, PurchaseKindSubscription.ReservesInventory())
}

func TestGateway_RefColumnsAreDistinct(t *testing.T) {
	seen := make(map[string]Gateway)
	for _, g := range Gateways {
		col := g.RefColumn()
		assert.NotEmpty(t, col, g)
		_, dup := seen[col]
		assert.False(t, dup, "column %s reused by %s", col, g)
		seen[col] = g
		assert.True(t, g.Valid())
	}
	assert.False(t, Gateway("VENMO").Valid())
	assert.Equal(t, "midtrans_id", GatewayLocalPayment.RefColumn())
}

func TestGateway_DefaultCurrency(t *testing.T) {
	assert.Equal(t, "IDR", GatewayLocalPayment.DefaultCurrency())
	assert.Equal(t, "BTC", GatewayCrypto.DefaultCurrency())
	assert.Equal(t, "USD", GatewayStripe.DefaultCurrency())
	assert.Equal(t, "USD", GatewayApple.DefaultCurrency())
}

func TestPurchasableItem_Available(t *testing.T) {
	item := &PurchasableItem{Stock: 5, ReservedStock: 2}
	assert.Equal(t, 3, item.Available())
}
