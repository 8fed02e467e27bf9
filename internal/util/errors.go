// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input provided")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrPriceMismatch      = errors.New("price mismatch")
	ErrPurchaseInProgress = errors.New("another purchase is already in progress")
)

// IsError reports whether err matches the target sentinel (errors.Is).
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
