package repository

import (
	"context"

	"payledger/internal/domain"
)

// ItemRepository mutates the reservation counters of purchasable items.
// Every method is a relative update; none of them overwrite stock.
type ItemRepository interface {
	// GetByID retrieves an item by ID.
	GetByID(ctx context.Context, id string) (*domain.PurchasableItem, error)

	// Reserve adds quantity to reserved stock if at least quantity units are
	// still available. ok is false when the guard rejected the update.
	Reserve(ctx context.Context, id string, quantity int) (ok bool, err error)

	// Release gives quantity reserved units back.
	Release(ctx context.Context, id string, quantity int) error

	// Finalize converts quantity reserved units into a permanent sale.
	Finalize(ctx context.Context, id string, quantity int) error
}

// CatalogRepository resolves prices for anything a payment can target.
type CatalogRepository interface {
	GetEntity(ctx context.Context, kind domain.EntityKind, id string) (*domain.CatalogEntity, error)
}
