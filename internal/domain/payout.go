package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Destination is the beneficiary's payout destination as it was when the
// payout was created.
type Destination struct {
	Name    string
	Account string
	Bank    string
	Email   string
}

// Payout is an outbound transfer to a beneficiary.
type Payout struct {
	ID            string
	OwnerID       string
	BeneficiaryID string
	Destination   Destination
	Amount        decimal.Decimal
	Currency      string
	Notes         string
	Status        PaymentStatus
	Gateway       Gateway
	Provider      string
	ReferenceNo   string
	ExternalRef   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Beneficiary is a bank or wallet destination owned by a user.
type Beneficiary struct {
	ID        string
	OwnerID   string
	Name      string
	Account   string
	Bank      string
	AliasName string
	Email     string
	Validated bool
}

// Snapshot copies the destination fields of a beneficiary.
func (b *Beneficiary) Snapshot() Destination {
	return Destination{
		Name:    b.Name,
		Account: b.Account,
		Bank:    b.Bank,
		Email:   b.Email,
	}
}
