package repository

import (
	"context"
	"time"

	"payledger/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByExternalRef retrieves a payment by the reference its gateway assigned.
	GetByExternalRef(ctx context.Context, gateway domain.Gateway, ref string) (*domain.Payment, error)

	// CompareAndTransition moves a payment from expected to next only if its
	// current status is still expected. applied is false when another writer
	// got there first or the payment does not exist.
	CompareAndTransition(ctx context.Context, id string, expected, next domain.PaymentStatus) (applied bool, err error)

	// ListPending returns PENDING payments created before the given time
	// that sort after the cursor, ordered by (created_at, id).
	ListPending(ctx context.Context, createdBefore time.Time, after PendingCursor, limit int) ([]*domain.Payment, error)
}

// PendingCursor is a keyset position in a pending-payment scan. The zero
// value starts from the oldest payment.
type PendingCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether c is the start of the scan.
func (c PendingCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}
