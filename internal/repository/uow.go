package repository

import "context"

// TxRepositories are repositories bound to a single database transaction.
type TxRepositories struct {
	Payments PaymentRepository
	Items    ItemRepository
}

// UnitOfWork runs fn inside one database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos TxRepositories) error) error
}
