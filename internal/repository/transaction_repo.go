// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"impact-ledger/internal/domain"
)

// TransactionRepository defines the interface for the append-only token
// ledger. There are intentionally no update or delete operations.
type TransactionRepository interface {
	// Create appends a new ledger entry.
	Create(ctx context.Context, q DBExecutor, transaction *domain.TokenTransaction) error
	// ListByUserID retrieves a page of a user's ledger entries, newest
	// first, plus the total count.
	ListByUserID(ctx context.Context, q DBExecutor, userID string, limit, offset int) ([]domain.TokenTransaction, int64, error)
	// SumByUserID returns the sum of a user's ledger amounts, used to
	// reconcile the ledger against the account balance.
	SumByUserID(ctx context.Context, q DBExecutor, userID string) (int64, error)
}
