// internal/repository/product_repo.go
package repository

import (
	"context"

	"impact-ledger/internal/domain"
)

// ProductRepository defines the interface for marketplace listing data
// operations.
type ProductRepository interface {
	// Create inserts a new listing.
	Create(ctx context.Context, q DBExecutor, product *domain.Product) error
	// GetByID retrieves a listing.
	GetByID(ctx context.Context, q DBExecutor, id string) (*domain.Product, error)
	// GetByIDForUpdate retrieves a listing holding an exclusive row lock
	// until the surrounding transaction completes.
	GetByIDForUpdate(ctx context.Context, q DBExecutor, id string) (*domain.Product, error)
	// UpdateListing persists seller-editable fields (name, description,
	// price, active flag). It never touches stock_quantity.
	UpdateListing(ctx context.Context, q DBExecutor, product *domain.Product) error
	// DecrementStock reduces stock by one. The update is guarded so stock
	// can never go below zero.
	DecrementStock(ctx context.Context, q DBExecutor, id string) error
	// ListActive returns a page of active listings plus the total count.
	ListActive(ctx context.Context, q DBExecutor, limit, offset int) ([]domain.Product, int64, error)
}
