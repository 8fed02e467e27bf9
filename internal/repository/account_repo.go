// internal/repository/account_repo.go
package repository

import (
	"context"

	"impact-ledger/internal/domain"
)

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	// EnsureAccount creates a zero-balance account for the user if none
	// exists yet. Safe to call concurrently.
	EnsureAccount(ctx context.Context, q DBExecutor, userID string) error
	// GetByUserID retrieves a user's account.
	GetByUserID(ctx context.Context, q DBExecutor, userID string) (*domain.Account, error)
	// GetByUserIDForUpdate retrieves a user's account holding an exclusive
	// row lock until the surrounding transaction completes.
	GetByUserIDForUpdate(ctx context.Context, q DBExecutor, userID string) (*domain.Account, error)
	// Credit adds amount tokens to the user's balance. amount must be positive.
	Credit(ctx context.Context, q DBExecutor, userID string, amount int64) error
	// Debit subtracts amount tokens from the user's balance. The update is
	// guarded so the balance can never go below zero even if the caller's
	// own check was raced.
	Debit(ctx context.Context, q DBExecutor, userID string, amount int64) error
}
