package repository

import (
	"context"

	"payledger/internal/domain"
)

// PayoutRepository defines the persistence operations for payouts.
type PayoutRepository interface {
	// Create persists a new payout.
	Create(ctx context.Context, payout *domain.Payout) error

	// GetByExternalRef retrieves a payout owned by ownerID by its gateway reference.
	GetByExternalRef(ctx context.Context, ownerID, ref string) (*domain.Payout, error)

	// CompareAndTransition has the same contract as the payment variant.
	CompareAndTransition(ctx context.Context, id string, expected, next domain.PaymentStatus) (bool, error)

	// ListPending returns PENDING payouts, oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.Payout, error)
}

// BeneficiaryRepository is the read side of the beneficiary store.
type BeneficiaryRepository interface {
	// GetValidated returns the beneficiary if it exists, belongs to ownerID
	// and has been validated. Otherwise ErrNotFound.
	GetValidated(ctx context.Context, id, ownerID string) (*domain.Beneficiary, error)
}
