// internal/service/product_service.go
package service

import (
	"context"
	"fmt"

	"impact-ledger/internal/domain"
	"impact-ledger/internal/repository"
	"impact-ledger/internal/util"
)

// CreateProductInput is the seller-supplied payload for a new listing.
// Initial stock is set here and only the purchase procedure changes it
// afterwards.
type CreateProductInput struct {
	Name          string
	Description   *string
	PriceTokens   int64
	StockQuantity int64
}

// UpdateProductInput carries the seller-editable fields of a listing. Nil
// means "leave unchanged". Stock is deliberately not editable.
type UpdateProductInput struct {
	Name        *string
	Description *string
	PriceTokens *int64
	IsActive    *bool
}

// ProductService manages marketplace listings. These are the single-row,
// unlocked write paths; everything that touches stock or balances lives in
// LedgerService.
type ProductService interface {
	Create(ctx context.Context, sellerID string, in CreateProductInput) (*domain.Product, error)
	Update(ctx context.Context, sellerID, productID string, in UpdateProductInput) (*domain.Product, error)
	Get(ctx context.Context, productID string) (*domain.Product, error)
	ListActive(ctx context.Context, limit, offset int) ([]domain.Product, int64, error)
}

type productService struct {
	dbExecutor  repository.DBExecutor
	productRepo repository.ProductRepository
}

// NewProductService creates a new instance of ProductService.
func NewProductService(dbExecutor repository.DBExecutor, productRepo repository.ProductRepository) ProductService {
	return &productService{
		dbExecutor:  dbExecutor,
		productRepo: productRepo,
	}
}

func (s *productService) Create(ctx context.Context, sellerID string, in CreateProductInput) (*domain.Product, error) {
	if sellerID == "" || in.Name == "" || in.PriceTokens <= 0 || in.StockQuantity < 0 {
		return nil, util.ErrInvalidInput
	}

	product := domain.NewProduct(sellerID, in.Name, in.Description, in.PriceTokens, in.StockQuantity)
	if err := s.productRepo.Create(ctx, s.dbExecutor, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (s *productService) Update(ctx context.Context, sellerID, productID string, in UpdateProductInput) (*domain.Product, error) {
	if sellerID == "" || productID == "" {
		return nil, util.ErrInvalidInput
	}

	product, err := s.productRepo.GetByID(ctx, s.dbExecutor, productID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("update product: failed to get product %s: %w", productID, err)
	}

	// Only the listing owner may edit it.
	if product.SellerID != sellerID {
		return nil, util.ErrForbidden
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, util.ErrInvalidInput
		}
		product.Name = *in.Name
	}
	if in.Description != nil {
		product.Description = in.Description
	}
	if in.PriceTokens != nil {
		if *in.PriceTokens <= 0 {
			return nil, util.ErrInvalidInput
		}
		product.PriceTokens = *in.PriceTokens
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}

	if err := s.productRepo.UpdateListing(ctx, s.dbExecutor, product); err != nil {
		return nil, fmt.Errorf("update product: failed to update product %s: %w", productID, err)
	}

	updated, err := s.productRepo.GetByID(ctx, s.dbExecutor, productID)
	if err != nil {
		return nil, fmt.Errorf("update product: failed to re-fetch product %s: %w", productID, err)
	}
	return updated, nil
}

func (s *productService) Get(ctx context.Context, productID string) (*domain.Product, error) {
	if productID == "" {
		return nil, util.ErrInvalidInput
	}
	product, err := s.productRepo.GetByID(ctx, s.dbExecutor, productID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (s *productService) ListActive(ctx context.Context, limit, offset int) ([]domain.Product, int64, error) {
	products, totalCount, err := s.productRepo.ListActive(ctx, s.dbExecutor, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, totalCount, nil
}
