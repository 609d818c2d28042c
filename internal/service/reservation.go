package service

import (
	"context"
	"errors"
	"fmt"

	"payledger/internal/repository"
)

// ReservationManager holds stock for pending purchases. It only issues
// relative, guarded counter updates.
type ReservationManager struct {
	items repository.ItemRepository
}

// NewReservationManager creates a new ReservationManager.
func NewReservationManager(items repository.ItemRepository) *ReservationManager {
	return &ReservationManager{items: items}
}

// Bind returns a manager over items, typically a transaction-scoped repository.
func (m *ReservationManager) Bind(items repository.ItemRepository) *ReservationManager {
	return &ReservationManager{items: items}
}

// Reserve holds quantity units of itemID.
func (m *ReservationManager) Reserve(ctx context.Context, itemID string, quantity int) error {
	ok, err := m.items.Reserve(ctx, itemID, quantity)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", itemID, err)
	}
	if !ok {
		return ErrInsufficientStock
	}
	return nil
}

// Release gives quantity held units of itemID back.
func (m *ReservationManager) Release(ctx context.Context, itemID string, quantity int) error {
	if err := m.items.Release(ctx, itemID, quantity); err != nil {
		return fmt.Errorf("release %s: %w", itemID, err)
	}
	return nil
}

// Finalize turns quantity held units of itemID into a sale.
func (m *ReservationManager) Finalize(ctx context.Context, itemID string, quantity int) error {
	if err := m.items.Finalize(ctx, itemID, quantity); err != nil {
		return fmt.Errorf("finalize %s: %w", itemID, err)
	}
	return nil
}

// IsUnderflow reports whether err comes from releasing more than is held.
func IsUnderflow(err error) bool {
	return errors.Is(err, repository.ErrReservationUnderflow)
}
