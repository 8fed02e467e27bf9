// internal/api/handler/product.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"impact-ledger/internal/api/types"
	"impact-ledger/internal/domain"
	"impact-ledger/internal/service"
	"impact-ledger/internal/util"
)

// ProductHandler handles HTTP requests for marketplace listings.
type ProductHandler struct {
	service service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(svc service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateProductRequest represents the request body for a new listing.
type CreateProductRequest struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	PriceTokens   int64   `json:"price_tokens"`
	StockQuantity int64   `json:"stock_quantity"`
}

// Create handles listing creation. The seller is the authenticated caller.
// POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(h.logger, w, r)
	if !ok {
		return
	}

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	product, err := h.service.Create(r.Context(), identity.UserID, service.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		PriceTokens:   req.PriceTokens,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	h.logger.Info("product listed",
		"seller_id", identity.UserID,
		"product_id", product.ID,
		"price_tokens", product.PriceTokens,
	)
	respondWithJSON(h.logger, w, http.StatusCreated, product)
}

// UpdateProductRequest represents the request body for a listing edit.
// Absent fields are left unchanged; stock cannot be edited here.
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceTokens *int64  `json:"price_tokens"`
	IsActive    *bool   `json:"is_active"`
}

// Update handles seller edits to listing metadata and price.
// PATCH /products/{productID}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(h.logger, w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productID")
	if _, err := uuid.Parse(productID); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	product, err := h.service.Update(r.Context(), identity.UserID, productID, service.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		PriceTokens: req.PriceTokens,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, product)
}

// Get handles a single listing request.
// GET /products/{productID}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if _, err := uuid.Parse(productID); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	product, err := h.service.Get(r.Context(), productID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, product)
}

// List handles the active listings request.
// GET /products?limit=20&offset=0
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 20)

	products, totalCount, err := h.service.ListActive(r.Context(), limit, offset)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, types.PaginatedResponse[domain.Product]{
		Data:       products,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}
