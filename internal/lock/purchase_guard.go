// internal/lock/purchase_guard.go
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"impact-ledger/internal/util"
)

// PurchaseGuard serializes purchases per buyer across service instances
// with a Redis SETNX lock. It only sheds duplicate submissions (e.g. a
// double-clicked buy button); correctness does not depend on it, since
// the database row locks inside the purchase transaction are authoritative.
type PurchaseGuard struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// NewPurchaseGuard creates a guard backed by the given Redis client.
func NewPurchaseGuard(client *redis.Client) *PurchaseGuard {
	return &PurchaseGuard{
		client:        client,
		expiration:    10 * time.Second,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    20,
	}
}

// BuyerKey is the Redis key guarding a buyer's purchases. Per-buyer rather
// than per-product keeps unrelated buyers fully concurrent.
func BuyerKey(buyerID string) string {
	return "purchase:guard:buyer:" + buyerID
}

// Acquire takes the buyer's lock, retrying briefly if it is held. The
// returned release func deletes the lock only if this caller still holds
// it, so an expired lock taken over by another request is never removed.
func (g *PurchaseGuard) Acquire(ctx context.Context, buyerID string) (func(), error) {
	key := BuyerKey(buyerID)
	holder := uuid.NewString()

	for i := 0; i < g.maxRetries; i++ {
		ok, err := g.client.SetNX(ctx, key, holder, g.expiration).Result()
		if err != nil {
			return nil, fmt.Errorf("purchase guard: %w", err)
		}
		if ok {
			return func() { g.release(key, holder) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.retryInterval):
		}
	}
	return nil, util.ErrPurchaseInProgress
}

// release checks ownership and deletes in one atomic Lua step.
func (g *PurchaseGuard) release(key, holder string) {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	// The HTTP request context may already be done; releasing is best effort
	// and the expiration bounds the damage if it fails.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g.client.Eval(ctx, script, []string{key}, holder)
}
