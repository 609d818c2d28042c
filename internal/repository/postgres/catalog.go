package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"payledger/internal/domain"
	"payledger/internal/repository"
)

// CatalogRepository reads prices from the catalog tables owned by the
// shop, course and subscription modules.
type CatalogRepository struct {
	q Querier
}

// NewCatalogRepository creates a new PostgreSQL catalog repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{q: db}
}

// GetEntity returns the pricing view of an entity.
func (r *CatalogRepository) GetEntity(ctx context.Context, kind domain.EntityKind, id string) (*domain.CatalogEntity, error) {
	var query string
	switch kind {
	case domain.EntityKindShopItem:
		query = `SELECT price, stock - reserved_stock FROM shop_items WHERE id = $1`
	case domain.EntityKindCourse:
		query = `SELECT price, NULL::INTEGER FROM courses WHERE id = $1`
	case domain.EntityKindSubscriptionPlan:
		query = `SELECT price, NULL::INTEGER FROM subscription_plans WHERE id = $1`
	default:
		return nil, fmt.Errorf("catalog: unknown entity kind %q", kind)
	}

	var price decimal.NullDecimal
	var available sql.NullInt64

	err := r.q.QueryRowContext(ctx, query, id).Scan(&price, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	entity := &domain.CatalogEntity{
		ID:       id,
		Kind:     kind,
		Price:    price.Decimal,
		HasPrice: price.Valid,
	}
	if available.Valid {
		n := int(available.Int64)
		entity.Available = &n
	}

	return entity, nil
}
