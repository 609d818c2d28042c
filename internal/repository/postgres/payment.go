package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payledger/internal/domain"
	"payledger/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

var paymentColumns = `id, payer_id, amount, currency, status, kind, entity_id, entity_kind, quantity, gateway, provider, ` +
	externalRefExpr + `, created_at, updated_at`

// Create persists a new payment. The external reference goes into the
// column owned by the payment's gateway.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	refColumn := payment.Gateway.RefColumn()
	if refColumn == "" {
		return fmt.Errorf("payment %s: unknown gateway %q", payment.ID, payment.Gateway)
	}

	query := fmt.Sprintf(`
		INSERT INTO payments (id, payer_id, amount, currency, status, kind, entity_id, entity_kind, quantity, gateway, provider, %s, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`, refColumn)

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.PayerID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Kind,
		payment.EntityID,
		payment.EntityKind,
		payment.Quantity,
		payment.Gateway,
		payment.Provider,
		payment.ExternalRef,
		payment.CreatedAt,
	)

	return mapWriteError(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, id))
}

// GetByExternalRef retrieves a payment by its gateway reference.
func (r *PaymentRepository) GetByExternalRef(ctx context.Context, gateway domain.Gateway, ref string) (*domain.Payment, error) {
	refColumn := gateway.RefColumn()
	if refColumn == "" {
		return nil, repository.ErrNotFound
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + refColumn + ` = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, ref))
}

// CompareAndTransition updates the status only while it still equals expected.
func (r *PaymentRepository) CompareAndTransition(ctx context.Context, id string, expected, next domain.PaymentStatus) (bool, error) {
	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return false, err
	}

	return exactlyOne(result)
}

// ListPending returns PENDING payments created before createdBefore, in
// (created_at, id) order starting after the cursor.
func (r *PaymentRepository) ListPending(ctx context.Context, createdBefore time.Time, after repository.PendingCursor, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND created_at < $2
			AND (created_at, id) > ($3, $4::uuid)
		ORDER BY created_at ASC, id ASC
		LIMIT $5`

	afterID := after.ID
	if afterID == "" {
		afterID = uuid.Nil.String()
	}

	rows, err := r.q.QueryContext(ctx, query, domain.PaymentStatusPending, createdBefore, after.CreatedAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var externalRef sql.NullString

	err := row.Scan(
		&payment.ID,
		&payment.PayerID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Kind,
		&payment.EntityID,
		&payment.EntityKind,
		&payment.Quantity,
		&payment.Gateway,
		&payment.Provider,
		&externalRef,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if externalRef.Valid {
		payment.ExternalRef = externalRef.String
	}

	return &payment, nil
}
