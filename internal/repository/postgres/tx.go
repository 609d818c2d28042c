package postgres

import (
	"context"
	"database/sql"

	"payledger/internal/repository"
)

// UnitOfWork runs repository work inside a single *sql.Tx.
type UnitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork creates a new UnitOfWork.
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

var _ repository.UnitOfWork = (*UnitOfWork)(nil)

// Do begins a transaction, hands fn transaction-scoped repositories and
// commits if fn succeeds.
func (u *UnitOfWork) Do(ctx context.Context, fn func(repos repository.TxRepositories) error) (err error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Create transaction-scoped repositories.
	repos := repository.TxRepositories{
		Payments: NewPaymentRepositoryWithTx(tx),
		Items:    NewItemRepositoryWithTx(tx),
	}

	if err = fn(repos); err != nil {
		return err
	}

	return tx.Commit()
}
