// internal/repository/postgres/product_pg.go
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

// ProductRepository implements repository.ProductRepository for PostgreSQL.
type ProductRepository struct{}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository() repository.ProductRepository {
	return &ProductRepository{}
}

const productColumns = `id, seller_id, name, description, price_tokens, stock_quantity, is_active, created_at, updated_at`

// Create inserts a new listing.
func (r *ProductRepository) Create(ctx context.Context, q repository.DBExecutor, product *domain.Product) error {
	query := `INSERT INTO products (id, seller_id, name, description, price_tokens, stock_quantity, is_active, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.ExecContext(ctx, query,
		product.ID,
		product.SellerID,
		product.Name,
		product.Description,
		product.PriceTokens,
		product.StockQuantity,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID retrieves a listing by ID.
func (r *ProductRepository) GetByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	err := q.GetContext(ctx, &product, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &product, nil
}

// GetByIDForUpdate retrieves a listing by ID with FOR UPDATE, serializing
// concurrent purchases of the same product on the row lock.
func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, q repository.DBExecutor, id string) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &product, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock product %s: %w", id, err)
	}
	return &product, nil
}

// UpdateListing persists the seller-editable fields. stock_quantity is
// deliberately absent from the SET list.
func (r *ProductRepository) UpdateListing(ctx context.Context, q repository.DBExecutor, product *domain.Product) error {
	query := `UPDATE products SET name = $1, description = $2, price_tokens = $3, is_active = $4, updated_at = $5
              WHERE id = $6`
	result, err := q.ExecContext(ctx, query,
		product.Name,
		product.Description,
		product.PriceTokens,
		product.IsActive,
		time.Now().UTC(),
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", product.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected updating product %s: %w", product.ID, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

// DecrementStock reduces stock by one. The stock predicate backs up the
// caller's availability check: at zero stock no row matches and
// ErrProductUnavailable is returned.
func (r *ProductRepository) DecrementStock(ctx context.Context, q repository.DBExecutor, id string) error {
	query := `UPDATE products SET stock_quantity = stock_quantity - 1, updated_at = $1
              WHERE id = $2 AND stock_quantity > 0`
	result, err := q.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected decrementing stock for product %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrProductUnavailable
	}
	return nil
}

// ListActive returns a page of active listings plus the total count.
func (r *ProductRepository) ListActive(ctx context.Context, q repository.DBExecutor, limit, offset int) ([]domain.Product, int64, error) {
	products := []domain.Product{}
	query := `SELECT ` + productColumns + ` FROM products
              WHERE is_active = TRUE
              ORDER BY created_at DESC
              LIMIT $1 OFFSET $2`
	if err := q.SelectContext(ctx, &products, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list active products: %w", err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM products WHERE is_active = TRUE`
	if err := q.GetContext(ctx, &totalCount, countQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to count active products: %w", err)
	}

	return products, totalCount, nil
}
