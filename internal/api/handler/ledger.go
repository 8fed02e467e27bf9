// internal/api/handler/ledger.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"impact-ledger/internal/api/types"
	"impact-ledger/internal/auth"
	"impact-ledger/internal/domain"
	"impact-ledger/internal/service"
	"impact-ledger/internal/util"
)

// DefaultTimeout bounds request handling at the router level.
const DefaultTimeout = 30 * time.Second

// LedgerHandler handles HTTP requests for balances, purchases, awards and
// ledger history.
type LedgerHandler struct {
	service service.LedgerService
	logger  *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: svc,
		logger:  logger,
	}
}

// respondWithJSON sends a JSON response.
func respondWithJSON(logger *slog.Logger, w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps service errors to client-safe responses. Anything
// unrecognized is logged in full and reported generically.
func respondWithError(logger *slog.Logger, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "internal error, try again"

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = "invalid input provided"
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "resource not found"
	case util.IsError(err, util.ErrForbidden):
		statusCode = http.StatusForbidden
		message = "forbidden"
	case util.IsError(err, util.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = "unauthorized"
	default:
		logger.Error("unhandled service error", "error", err)
	}

	respondWithJSON(logger, w, statusCode, map[string]string{"error": message})
}

// callerIdentity pulls the verified caller out of the request context.
func callerIdentity(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondWithError(logger, w, util.ErrUnauthorized)
		return nil, false
	}
	return identity, true
}

// PurchaseRequest represents the request body for a purchase. The buyer is
// always the authenticated caller; there is deliberately no field to
// purchase on another user's behalf, and unknown fields are rejected.
type PurchaseRequest struct {
	ProductID      string `json:"product_id"`
	TokensRequired int64  `json:"tokens_required"`
}

// Purchase handles the atomic purchase request.
// POST /purchase
func (h *LedgerHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(h.logger, w, r)
	if !ok {
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var req PurchaseRequest
	if err := decoder.Decode(&req); err != nil {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid purchase request"})
		return
	}
	if _, err := uuid.Parse(req.ProductID); err != nil || req.TokensRequired <= 0 {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid purchase request"})
		return
	}

	h.logger.Info("purchase attempt",
		"buyer_id", identity.UserID,
		"product_id", req.ProductID,
		"tokens_required", req.TokensRequired,
	)

	remaining, err := h.service.Purchase(r.Context(), identity.UserID, req.ProductID, req.TokensRequired)
	if err != nil {
		h.respondPurchaseFailure(w, identity.UserID, req.ProductID, err)
		return
	}

	h.logger.Info("purchase completed",
		"buyer_id", identity.UserID,
		"product_id", req.ProductID,
		"remaining_tokens", remaining,
	)
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"remaining_tokens": remaining,
	})
}

// respondPurchaseFailure maps the procedure's typed failures onto wire
// responses that are actionable without revealing internals.
func (h *LedgerHandler) respondPurchaseFailure(w http.ResponseWriter, buyerID, productID string, err error) {
	var statusCode int
	var message, failureCode string

	switch {
	case util.IsError(err, util.ErrInsufficientTokens):
		statusCode, message, failureCode = http.StatusBadRequest, "insufficient tokens", "insufficient_tokens"
	case util.IsError(err, util.ErrProductUnavailable):
		statusCode, message, failureCode = http.StatusNotFound, "product unavailable", "product_unavailable"
	case util.IsError(err, util.ErrNotFound):
		statusCode, message, failureCode = http.StatusNotFound, "resource not found", "not_found"
	case util.IsError(err, util.ErrPriceMismatch):
		statusCode, message, failureCode = http.StatusBadRequest, "invalid purchase request", "price_mismatch"
	case util.IsError(err, util.ErrInvalidInput):
		statusCode, message, failureCode = http.StatusBadRequest, "invalid purchase request", "invalid_input"
	case util.IsError(err, util.ErrPurchaseInProgress):
		statusCode, message, failureCode = http.StatusConflict, "another purchase is already in progress", "purchase_in_progress"
	default:
		// Internal detail stays server-side.
		statusCode, message, failureCode = http.StatusInternalServerError, "purchase failed, try again", "internal"
		h.logger.Error("purchase failed unexpectedly",
			"buyer_id", buyerID,
			"product_id", productID,
			"error", err,
		)
	}

	h.logger.Info("purchase rejected",
		"buyer_id", buyerID,
		"product_id", productID,
		"failure_code", failureCode,
	)
	respondWithJSON(h.logger, w, statusCode, map[string]string{"error": message})
}

// AwardRequest represents the request body for a privileged token credit.
type AwardRequest struct {
	UserID      string  `json:"user_id"`
	Amount      int64   `json:"amount"`
	Type        string  `json:"type"`
	Description *string `json:"description"`
	ReferenceID *string `json:"reference_id"`
}

// Award handles privileged token credits (evaluation rewards, challenge
// prizes, signup bonuses). Only service-role callers may invoke it.
// POST /awards
func (h *LedgerHandler) Award(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(h.logger, w, r)
	if !ok {
		return
	}
	if identity.Role != auth.RoleService {
		respondWithError(h.logger, w, util.ErrForbidden)
		return
	}

	var req AwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	entry, newBalance, err := h.service.Award(r.Context(), service.AwardInput{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Type:        domain.TransactionType(req.Type),
		Description: req.Description,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	h.logger.Info("tokens awarded",
		"caller_id", identity.UserID,
		"user_id", req.UserID,
		"amount", req.Amount,
		"type", req.Type,
	)
	respondWithJSON(h.logger, w, http.StatusCreated, map[string]interface{}{
		"transaction_id": entry.ID,
		"new_balance":    newBalance,
	})
}

// MyBalance handles the caller's balance request.
// GET /me/balance
func (h *LedgerHandler) MyBalance(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(h.logger, w, r)
	if !ok {
		return
	}

	account, err := h.service.GetBalance(r.Context(), identity.UserID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"user_id":       account.UserID,
		"token_balance": account.TokenBalance,
	})
}

// MyTransactions handles the caller's ledger history request.
// GET /me/transactions?limit=20&offset=0
func (h *LedgerHandler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(h.logger, w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r, 20)

	transactions, totalCount, err := h.service.GetHistory(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, types.PaginatedResponse[domain.TokenTransaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}

// Audit handles the reconciliation request for one account. Restricted to
// service-role callers.
// GET /accounts/{userID}/audit
func (h *LedgerHandler) Audit(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(h.logger, w, r)
	if !ok {
		return
	}
	if identity.Role != auth.RoleService {
		respondWithError(h.logger, w, util.ErrForbidden)
		return
	}

	userID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(userID); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	report, err := h.service.Audit(r.Context(), userID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, report)
}

// parsePagination reads limit/offset query parameters with defaults.
func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
