package domain

import "github.com/shopspring/decimal"

// PurchasableItem is an inventory-bearing catalog entry such as a shop item.
// Invariant: 0 <= ReservedStock <= Stock.
type PurchasableItem struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	Stock         int
	ReservedStock int
}

// Available is the sellable quantity exposed to buyers.
func (i *PurchasableItem) Available() int {
	return i.Stock - i.ReservedStock
}

// CatalogEntity is the pricing view of any purchasable entity.
type CatalogEntity struct {
	ID       string
	Kind     EntityKind
	Price    decimal.Decimal
	HasPrice bool

	// Available is nil for entities without inventory.
	Available *int
}
