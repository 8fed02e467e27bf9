// internal/domain/account_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAccount(t *testing.T) {
	userID := "7f9c24e5-1f0b-4ad4-9f6e-6f2b3a1c0d9e"

	account := NewAccount(userID)

	assert.Equal(t, userID, account.UserID)
	assert.Equal(t, int64(0), account.TokenBalance)
	assert.False(t, account.CreatedAt.IsZero())
	assert.Equal(t, account.CreatedAt, account.UpdatedAt)
}
