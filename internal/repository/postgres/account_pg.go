// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"impact-ledger/internal/domain"
	"impact-ledger/internal/repository"
	"impact-ledger/internal/util"
)

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// EnsureAccount inserts a zero-balance account if the user has none.
// ON CONFLICT DO NOTHING makes this safe under concurrent first touches.
func (r *AccountRepository) EnsureAccount(ctx context.Context, q repository.DBExecutor, userID string) error {
	account := domain.NewAccount(userID)
	query := `INSERT INTO accounts (user_id, token_balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT (user_id) DO NOTHING`
	if _, err := q.ExecContext(ctx, query, account.UserID, account.TokenBalance, account.CreatedAt, account.UpdatedAt); err != nil {
		return fmt.Errorf("failed to ensure account for user %s: %w", userID, err)
	}
	return nil
}

// GetByUserID retrieves an account by user ID.
func (r *AccountRepository) GetByUserID(ctx context.Context, q repository.DBExecutor, userID string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, user_id, token_balance, created_at, updated_at FROM accounts WHERE user_id = $1`
	err := q.GetContext(ctx, &account, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account for user %s: %w", userID, err)
	}
	return &account, nil
}

// GetByUserIDForUpdate retrieves an account by user ID with FOR UPDATE, so
// concurrent balance mutations for the same user serialize on the row lock.
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, q repository.DBExecutor, userID string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, user_id, token_balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &account, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock account for user %s: %w", userID, err)
	}
	return &account, nil
}

// Credit adds tokens to an account's balance.
func (r *AccountRepository) Credit(ctx context.Context, q repository.DBExecutor, userID string, amount int64) error {
	query := `UPDATE accounts SET token_balance = token_balance + $1, updated_at = $2 WHERE user_id = $3`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to credit account for user %s: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected crediting user %s: %w", userID, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

// Debit subtracts tokens from an account's balance. The balance predicate
// in the WHERE clause backs up the caller's own check: if the debit would
// go negative, zero rows match and ErrInsufficientTokens is returned.
func (r *AccountRepository) Debit(ctx context.Context, q repository.DBExecutor, userID string, amount int64) error {
	query := `UPDATE accounts SET token_balance = token_balance - $1, updated_at = $2
              WHERE user_id = $3 AND token_balance >= $1`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to debit account for user %s: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected debiting user %s: %w", userID, err)
	}
	if rowsAffected == 0 {
		return util.ErrInsufficientTokens
	}
	return nil
}
