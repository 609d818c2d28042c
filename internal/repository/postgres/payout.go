package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"payledger/internal/domain"
	"payledger/internal/repository"
)

// PayoutRepository is a PostgreSQL implementation of repository.PayoutRepository.
type PayoutRepository struct {
	q Querier
}

// NewPayoutRepository creates a new PostgreSQL payout repository.
func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{q: db}
}

var payoutColumns = `id, user_id, beneficiary_id, dest_name, dest_account, dest_bank, dest_email, amount, currency, notes, status, gateway, provider, reference_no, ` +
	externalRefExpr + `, created_at, updated_at`

// Create persists a new payout together with its destination snapshot.
func (r *PayoutRepository) Create(ctx context.Context, payout *domain.Payout) error {
	refColumn := payout.Gateway.RefColumn()
	if refColumn == "" {
		return fmt.Errorf("payout %s: unknown gateway %q", payout.ID, payout.Gateway)
	}

	query := fmt.Sprintf(`
		INSERT INTO payouts (id, user_id, beneficiary_id, dest_name, dest_account, dest_bank, dest_email, amount, currency, notes, status, gateway, provider, reference_no, %s, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
	`, refColumn)

	_, err := r.q.ExecContext(ctx, query,
		payout.ID,
		payout.OwnerID,
		payout.BeneficiaryID,
		payout.Destination.Name,
		payout.Destination.Account,
		payout.Destination.Bank,
		payout.Destination.Email,
		payout.Amount,
		payout.Currency,
		payout.Notes,
		payout.Status,
		payout.Gateway,
		payout.Provider,
		payout.ReferenceNo,
		payout.ExternalRef,
		payout.CreatedAt,
	)

	return mapWriteError(err)
}

// GetByExternalRef retrieves a payout owned by ownerID by any gateway reference.
func (r *PayoutRepository) GetByExternalRef(ctx context.Context, ownerID, ref string) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE user_id = $1 AND ` + externalRefExpr + ` = $2`
	return scanPayout(r.q.QueryRowContext(ctx, query, ownerID, ref))
}

// CompareAndTransition updates the status only while it still equals expected.
func (r *PayoutRepository) CompareAndTransition(ctx context.Context, id string, expected, next domain.PaymentStatus) (bool, error) {
	query := `UPDATE payouts SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return false, err
	}

	return exactlyOne(result)
}

// ListPending returns PENDING payouts, oldest first.
func (r *PayoutRepository) ListPending(ctx context.Context, limit int) ([]*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, domain.PaymentStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []*domain.Payout
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, payout)
	}
	return payouts, rows.Err()
}

func scanPayout(row rowScanner) (*domain.Payout, error) {
	var payout domain.Payout
	var externalRef sql.NullString

	err := row.Scan(
		&payout.ID,
		&payout.OwnerID,
		&payout.BeneficiaryID,
		&payout.Destination.Name,
		&payout.Destination.Account,
		&payout.Destination.Bank,
		&payout.Destination.Email,
		&payout.Amount,
		&payout.Currency,
		&payout.Notes,
		&payout.Status,
		&payout.Gateway,
		&payout.Provider,
		&payout.ReferenceNo,
		&externalRef,
		&payout.CreatedAt,
		&payout.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if externalRef.Valid {
		payout.ExternalRef = externalRef.String
	}

	return &payout, nil
}
