package postgres

import (
	"context"
	"database/sql"
	"errors"

	"payledger/internal/domain"
	"payledger/internal/repository"
)

// BeneficiaryRepository is a PostgreSQL implementation of repository.BeneficiaryRepository.
type BeneficiaryRepository struct {
	q Querier
}

// NewBeneficiaryRepository creates a new PostgreSQL beneficiary repository.
func NewBeneficiaryRepository(db *sql.DB) *BeneficiaryRepository {
	return &BeneficiaryRepository{q: db}
}

// GetValidated retrieves a validated beneficiary owned by ownerID.
func (r *BeneficiaryRepository) GetValidated(ctx context.Context, id, ownerID string) (*domain.Beneficiary, error) {
	query := `
		SELECT id, user_id, name, account, bank, alias_name, email, validated
		FROM beneficiaries
		WHERE id = $1 AND user_id = $2 AND validated = TRUE
	`

	var b domain.Beneficiary
	err := r.q.QueryRowContext(ctx, query, id, ownerID).Scan(
		&b.ID,
		&b.OwnerID,
		&b.Name,
		&b.Account,
		&b.Bank,
		&b.AliasName,
		&b.Email,
		&b.Validated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &b, nil
}
