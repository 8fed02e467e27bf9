// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType categorizes a ledger entry.
type TransactionType string

const (
	TransactionTypeMarketplacePurchase TransactionType = "marketplace_purchase"
	TransactionTypeEvaluationReward    TransactionType = "evaluation_reward"
	TransactionTypeChallengeReward     TransactionType = "challenge_reward"
	TransactionTypeSignupBonus         TransactionType = "signup_bonus"
)

// AwardTypes lists the entry types a privileged award call may create.
// Purchases are excluded: only the purchase procedure writes those.
var AwardTypes = map[TransactionType]bool{
	TransactionTypeEvaluationReward: true,
	TransactionTypeChallengeReward:  true,
	TransactionTypeSignupBonus:      true,
}

// TokenTransaction is one append-only ledger entry. Entries are created
// exclusively by the service's privileged routines and are never updated or
// deleted; at any observation point the sum of a user's amounts equals
// their current balance.
type TokenTransaction struct {
	ID          string          `db:"id" json:"id"`           // UUID primary key
	UserID      string          `db:"user_id" json:"user_id"` // Account the entry applies to
	Amount      int64           `db:"amount" json:"amount"`   // Signed; negative for spend
	Type        TransactionType `db:"type" json:"type"`
	Description *string         `db:"description" json:"description"`
	ReferenceID *string         `db:"reference_id" json:"reference_id"` // e.g. product id for purchases
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`     // Server-assigned
}

// NewTokenTransaction creates a ledger entry for a user.
func NewTokenTransaction(userID string, amount int64, txType TransactionType, description, referenceID *string) *TokenTransaction {
	return &TokenTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}
}
