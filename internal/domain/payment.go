package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment or payout.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
	PaymentStatusExpired PaymentStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusExpired
}

// CanTransition reports whether from -> to is a legal ledger transition.
// Only PENDING may move, and only to a terminal state.
func CanTransition(from, to PaymentStatus) bool {
	return from == PaymentStatusPending && to.Terminal()
}

// PurchaseKind describes what a payment buys.
type PurchaseKind string

const (
	PurchaseKindItem         PurchaseKind = "ITEM_PURCHASE"
	PurchaseKindCourse       PurchaseKind = "COURSE_ENROLLMENT"
	PurchaseKindSubscription PurchaseKind = "SUBSCRIPTION"
)

// EntityKind is the catalog entity a payment targets.
type EntityKind string

const (
	EntityKindShopItem         EntityKind = "SHOP_ITEM"
	EntityKindCourse           EntityKind = "COURSE"
	EntityKindSubscriptionPlan EntityKind = "SUBSCRIPTION_PLAN"
)

// EntityKind returns the catalog entity kind a purchase kind targets.
func (k PurchaseKind) EntityKind() EntityKind {
	switch k {
	case PurchaseKindItem:
		return EntityKindShopItem
	case PurchaseKindCourse:
		return EntityKindCourse
	case PurchaseKindSubscription:
		return EntityKindSubscriptionPlan
	default:
		return ""
	}
}

// ReservesInventory reports whether payments of this kind hold a stock
// reservation while pending.
func (k PurchaseKind) ReservesInventory() bool {
	return k == PurchaseKindItem
}

// Payment is a single purchase attempt against a gateway.
type Payment struct {
	ID          string
	PayerID     string
	Amount      decimal.Decimal
	Currency    string
	Status      PaymentStatus
	Kind        PurchaseKind
	EntityID    string
	EntityKind  EntityKind
	Quantity    int
	Gateway     Gateway
	Provider    string // Sub-provider for LOCAL_PAYMENT and CRYPTO
	ExternalRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
