// internal/domain/product.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a marketplace listing. Sellers own the metadata (name,
// description, price, active flag); stock_quantity is set once at creation
// and from then on is decremented exclusively by the purchase procedure.
type Product struct {
	ID            string    `db:"id" json:"id"`                 // UUID primary key
	SellerID      string    `db:"seller_id" json:"seller_id"`   // UUID of the listing owner
	Name          string    `db:"name" json:"name"`
	Description   *string   `db:"description" json:"description"`
	PriceTokens   int64     `db:"price_tokens" json:"price_tokens"`     // Whole tokens, > 0
	StockQuantity int64     `db:"stock_quantity" json:"stock_quantity"` // >= 0
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// NewProduct creates an active listing with its initial stock.
func NewProduct(sellerID, name string, description *string, priceTokens, stockQuantity int64) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:            uuid.NewString(),
		SellerID:      sellerID,
		Name:          name,
		Description:   description,
		PriceTokens:   priceTokens,
		StockQuantity: stockQuantity,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Available reports whether the listing can currently be purchased.
func (p *Product) Available() bool {
	return p.IsActive && p.StockQuantity > 0
}
