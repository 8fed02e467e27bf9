// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"fmt"

	"impact-ledger/internal/domain"
	"impact-ledger/internal/repository"
)

// TransactionRepository implements repository.TransactionRepository for
// PostgreSQL. The ledger is append-only: this type issues INSERTs and
// SELECTs, never UPDATEs or DELETEs, and the schema revokes those grants
// as a second line of defense.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// Create appends a new ledger entry.
func (r *TransactionRepository) Create(ctx context.Context, q repository.DBExecutor, transaction *domain.TokenTransaction) error {
	query := `INSERT INTO token_transactions (id, user_id, amount, type, description, reference_id, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := q.ExecContext(ctx, query,
		transaction.ID,
		transaction.UserID,
		transaction.Amount,
		transaction.Type,
		transaction.Description,
		transaction.ReferenceID,
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create token transaction: %w", err)
	}
	return nil
}

// ListByUserID retrieves a page of a user's ledger entries plus the total
// count, newest first.
func (r *TransactionRepository) ListByUserID(ctx context.Context, q repository.DBExecutor, userID string, limit, offset int) ([]domain.TokenTransaction, int64, error) {
	transactions := []domain.TokenTransaction{}
	query := `SELECT id, user_id, amount, type, description, reference_id, created_at
              FROM token_transactions
              WHERE user_id = $1
              ORDER BY created_at DESC
              LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for user %s: %w", userID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM token_transactions WHERE user_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions for user %s: %w", userID, err)
	}

	return transactions, totalCount, nil
}

// SumByUserID returns the sum of a user's ledger amounts.
func (r *TransactionRepository) SumByUserID(ctx context.Context, q repository.DBExecutor, userID string) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(amount), 0) FROM token_transactions WHERE user_id = $1`
	if err := q.GetContext(ctx, &sum, query, userID); err != nil {
		return 0, fmt.Errorf("failed to sum transactions for user %s: %w", userID, err)
	}
	return sum, nil
}
