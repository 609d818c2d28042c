package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateExternalRef is returned when a gateway reference is already
	// recorded against another payment or payout.
	ErrDuplicateExternalRef = errors.New("duplicate external reference")
)

// ErrReservationUnderflow is returned when releasing or finalizing more
// units than are currently reserved.
var ErrReservationUnderflow = errors.New("reservation underflow")
