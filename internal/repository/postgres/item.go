package postgres

import (
	"context"
	"database/sql"
	"errors"

	"payledger/internal/domain"
	"payledger/internal/repository"
)

// ItemRepository is a PostgreSQL implementation of repository.ItemRepository.
// The WHERE guards keep 0 <= reserved_stock <= stock without locking rows
// across calls; the table CHECK constraint backs them up.
type ItemRepository struct {
	q Querier
}

// NewItemRepository creates a new PostgreSQL item repository.
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{q: db}
}

// NewItemRepositoryWithTx creates an item repository using a transaction.
func NewItemRepositoryWithTx(tx *sql.Tx) *ItemRepository {
	return &ItemRepository{q: tx}
}

// GetByID retrieves an item by ID.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.PurchasableItem, error) {
	query := `SELECT id, name, price, stock, reserved_stock FROM shop_items WHERE id = $1`

	var item domain.PurchasableItem
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&item.Price,
		&item.Stock,
		&item.ReservedStock,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &item, nil
}

// Reserve claims quantity units if they are still available.
func (r *ItemRepository) Reserve(ctx context.Context, id string, quantity int) (bool, error) {
	query := `
		UPDATE shop_items
		SET reserved_stock = reserved_stock + $2
		WHERE id = $1 AND stock - reserved_stock >= $2
	`

	result, err := r.q.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return false, err
	}

	return exactlyOne(result)
}

// Release returns quantity reserved units to the sellable pool.
func (r *ItemRepository) Release(ctx context.Context, id string, quantity int) error {
	query := `
		UPDATE shop_items
		SET reserved_stock = reserved_stock - $2
		WHERE id = $1 AND reserved_stock >= $2
	`

	return r.execGuarded(ctx, query, id, quantity)
}

// Finalize turns quantity reserved units into sold units.
func (r *ItemRepository) Finalize(ctx context.Context, id string, quantity int) error {
	query := `
		UPDATE shop_items
		SET stock = stock - $2, reserved_stock = reserved_stock - $2
		WHERE id = $1 AND reserved_stock >= $2
	`

	return r.execGuarded(ctx, query, id, quantity)
}

func (r *ItemRepository) execGuarded(ctx context.Context, query, id string, quantity int) error {
	result, err := r.q.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return err
	}

	applied, err := exactlyOne(result)
	if err != nil {
		return err
	}

	if !applied {
		return repository.ErrReservationUnderflow
	}

	return nil
}
