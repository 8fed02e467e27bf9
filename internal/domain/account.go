// internal/domain/account.go
package domain

import "time"

// Account holds a user's token balance. There is exactly one account per
// platform user; the balance is an integral token count and must never go
// negative. Balances are mutated only by the ledger service's transactional
// routines, never from a client-supplied value.
type Account struct {
	ID           int64     `db:"id" json:"id"`                       // Primary key, BIGSERIAL in DB
	UserID       string    `db:"user_id" json:"user_id"`             // UUID of the platform user, unique
	TokenBalance int64     `db:"token_balance" json:"token_balance"` // Whole tokens, >= 0
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NewAccount creates a zero-balance account for a user.
func NewAccount(userID string) *Account {
	now := time.Now().UTC()
	return &Account{
		UserID:       userID,
		TokenBalance: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
