package domain

import "errors"

// Validation errors raised synchronously by Submit. Everything past
// validation is a business outcome recorded in the transaction log,
// never an error.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrBadAmount       = errors.New("amount must be > 0")
	ErrSameAccount     = errors.New("sender and receiver must be different")
	ErrNegativeBalance = errors.New("initial balance cannot be negative")
)

// IsValidation reports whether err is one of the submission validation
// errors. The HTTP layer maps these to 400 responses.
func IsValidation(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrBadAmount) ||
		errors.Is(err, ErrSameAccount)
}
