package service

import "errors"

var (
	// ErrInvalidPayerID is returned when the caller identity is empty.
	ErrInvalidPayerID = errors.New("invalid payer id")

	// ErrInvalidEntityID is returned when the purchased entity ID is empty.
	ErrInvalidEntityID = errors.New("invalid entity id")

	// ErrInvalidPurchaseKind is returned for an unknown purchase kind.
	ErrInvalidPurchaseKind = errors.New("invalid purchase kind")

	// ErrInvalidQuantity is returned when quantity is negative.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrEntityNotFound is returned when the purchased entity does not exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrAmountUndetermined is returned when no positive price can be resolved.
	ErrAmountUndetermined = errors.New("payment amount could not be determined")

	// ErrInsufficientStock is returned when fewer units are available than requested.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = errors.New("invalid payment id")

	// ErrPaymentNotFound is returned when a payment does not exist or belongs
	// to someone else.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidTransition is returned when asked to move a payment to a
	// non-terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidPaymentAmount is returned when payment amount is invalid.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrBeneficiaryNotFound is returned when the beneficiary is missing,
	// unvalidated or owned by someone else.
	ErrBeneficiaryNotFound = errors.New("beneficiary not found")

	// ErrPayoutNotFound is returned when a payout does not exist for the owner.
	ErrPayoutNotFound = errors.New("payout not found")
)
