// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"

	"impact-ledger/internal/domain"
	"impact-ledger/internal/repository"
	"impact-ledger/internal/util"
	"impact-ledger/pkg/db"
)

// PurchaseGuard is the optional per-buyer lock taken before the purchase
// transaction. *lock.PurchaseGuard implements it; a nil guard disables it.
type PurchaseGuard interface {
	Acquire(ctx context.Context, buyerID string) (func(), error)
}

// AwardInput describes a privileged token credit (evaluation reward,
// challenge prize, signup bonus).
type AwardInput struct {
	UserID      string
	Amount      int64
	Type        domain.TransactionType
	Description *string
	ReferenceID *string
}

// AuditReport compares an account balance against the sum of its ledger
// entries. The two must always agree.
type AuditReport struct {
	UserID       string `json:"user_id"`
	TokenBalance int64  `json:"token_balance"`
	LedgerSum    int64  `json:"ledger_sum"`
	Consistent   bool   `json:"consistent"`
}

// LedgerService owns every balance-affecting operation. Balances and stock
// are mutated nowhere else.
type LedgerService interface {
	// Purchase atomically buys one unit of a product for the buyer and
	// returns the buyer's remaining balance. expectedPrice must equal the
	// product's current listed price (price pinning).
	Purchase(ctx context.Context, buyerID, productID string, expectedPrice int64) (int64, error)
	// Award credits tokens to a user and appends the matching ledger entry,
	// returning the entry and the new balance. The account is created on
	// first award.
	Award(ctx context.Context, in AwardInput) (*domain.TokenTransaction, int64, error)
	// GetBalance returns the user's account, creating a zero-balance
	// account on first touch.
	GetBalance(ctx context.Context, userID string) (*domain.Account, error)
	// GetHistory returns a page of the user's ledger, newest first.
	GetHistory(ctx context.Context, userID string, limit, offset int) ([]domain.TokenTransaction, int64, error)
	// Audit reconciles the user's balance against the ledger sum.
	Audit(ctx context.Context, userID string) (*AuditReport, error)
}

// ledgerService implements LedgerService.
type ledgerService struct {
	dbBeginner      db.DBTxBeginner
	dbExecutor      repository.DBExecutor
	accountRepo     repository.AccountRepository
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	guard           PurchaseGuard // may be nil
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
}

// NewLedgerService creates a new instance of LedgerService. guard may be
// nil, in which case purchases rely on the database row locks alone.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	productRepo repository.ProductRepository,
	transactionRepo repository.TransactionRepository,
	guard PurchaseGuard,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) LedgerService {
	return &ledgerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		accountRepo:     accountRepo,
		productRepo:     productRepo,
		transactionRepo: transactionRepo,
		guard:           guard,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
	}
}

// Purchase executes the whole buy as one database transaction. Lock order
// is fixed (buyer account row first, then product row) so two purchases
// touching overlapping rows can never deadlock. All checks precede all
// writes; any failure rolls the unit back with no partial debit, no
// partial stock decrement and no orphan ledger entry.
//
// Buying one's own listing is allowed: the buyer's balance decreases and
// nothing is credited back, since seller payouts are settled elsewhere.
func (s *ledgerService) Purchase(ctx context.Context, buyerID, productID string, expectedPrice int64) (int64, error) {
	if buyerID == "" || productID == "" || expectedPrice <= 0 {
		return 0, util.ErrInvalidInput
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, buyerID)
		if err != nil {
			return 0, fmt.Errorf("purchase: failed to acquire buyer guard: %w", err)
		}
		defer release()
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return 0, fmt.Errorf("purchase: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return 0, fmt.Errorf("purchase: transaction controller does not implement DBExecutor")
	}

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, txExecutor, buyerID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return 0, util.ErrNotFound
		}
		return 0, fmt.Errorf("purchase: failed to lock buyer account %s: %w", buyerID, err)
	}

	if account.TokenBalance < expectedPrice {
		return 0, util.ErrInsufficientTokens
	}

	product, err := s.productRepo.GetByIDForUpdate(ctx, txExecutor, productID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return 0, util.ErrNotFound
		}
		return 0, fmt.Errorf("purchase: failed to lock product %s: %w", productID, err)
	}

	if !product.Available() {
		return 0, util.ErrProductUnavailable
	}

	// Price pinning: the client bought at a displayed price; if the listing
	// changed underneath it, fail rather than charge a different amount.
	if product.PriceTokens != expectedPrice {
		return 0, util.ErrPriceMismatch
	}

	if err := s.accountRepo.Debit(ctx, txExecutor, buyerID, expectedPrice); err != nil {
		return 0, fmt.Errorf("purchase: failed to debit buyer %s: %w", buyerID, err)
	}

	if err := s.productRepo.DecrementStock(ctx, txExecutor, productID); err != nil {
		return 0, fmt.Errorf("purchase: failed to decrement stock of %s: %w", productID, err)
	}

	description := fmt.Sprintf("Purchased %s", product.Name)
	entry := domain.NewTokenTransaction(buyerID, -expectedPrice, domain.TransactionTypeMarketplacePurchase, &description, &productID)
	if err := s.transactionRepo.Create(ctx, txExecutor, entry); err != nil {
		return 0, fmt.Errorf("purchase: failed to append ledger entry: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return 0, fmt.Errorf("purchase: failed to commit transaction: %w", err)
	}

	return account.TokenBalance - expectedPrice, nil
}

// Award credits tokens inside the same locked unit the purchase uses, so
// a concurrent purchase and award on one account serialize cleanly.
func (s *ledgerService) Award(ctx context.Context, in AwardInput) (*domain.TokenTransaction, int64, error) {
	if in.UserID == "" || in.Amount <= 0 {
		return nil, 0, util.ErrInvalidInput
	}
	if !domain.AwardTypes[in.Type] {
		return nil, 0, util.ErrInvalidInput
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, 0, fmt.Errorf("award: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, 0, fmt.Errorf("award: transaction controller does not implement DBExecutor")
	}

	if err := s.accountRepo.EnsureAccount(ctx, txExecutor, in.UserID); err != nil {
		return nil, 0, fmt.Errorf("award: failed to ensure account %s: %w", in.UserID, err)
	}

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, txExecutor, in.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("award: failed to lock account %s: %w", in.UserID, err)
	}

	if err := s.accountRepo.Credit(ctx, txExecutor, in.UserID, in.Amount); err != nil {
		return nil, 0, fmt.Errorf("award: failed to credit account %s: %w", in.UserID, err)
	}

	entry := domain.NewTokenTransaction(in.UserID, in.Amount, in.Type, in.Description, in.ReferenceID)
	if err := s.transactionRepo.Create(ctx, txExecutor, entry); err != nil {
		return nil, 0, fmt.Errorf("award: failed to append ledger entry: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, 0, fmt.Errorf("award: failed to commit transaction: %w", err)
	}

	return entry, account.TokenBalance + in.Amount, nil
}

// GetBalance returns the user's account, provisioning it on first touch.
func (s *ledgerService) GetBalance(ctx context.Context, userID string) (*domain.Account, error) {
	if userID == "" {
		return nil, util.ErrInvalidInput
	}
	if err := s.accountRepo.EnsureAccount(ctx, s.dbExecutor, userID); err != nil {
		return nil, fmt.Errorf("get balance: failed to ensure account %s: %w", userID, err)
	}
	account, err := s.accountRepo.GetByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: failed to get account %s: %w", userID, err)
	}
	return account, nil
}

// GetHistory returns a page of the user's ledger entries.
func (s *ledgerService) GetHistory(ctx context.Context, userID string, limit, offset int) ([]domain.TokenTransaction, int64, error) {
	if userID == "" {
		return nil, 0, util.ErrInvalidInput
	}
	transactions, totalCount, err := s.transactionRepo.ListByUserID(ctx, s.dbExecutor, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("get history: %w", err)
	}
	return transactions, totalCount, nil
}

// Audit reconciles the account balance against the ledger sum. Reads run
// in one transaction so the comparison sees a single snapshot.
func (s *ledgerService) Audit(ctx context.Context, userID string) (*AuditReport, error) {
	if userID == "" {
		return nil, util.ErrInvalidInput
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("audit: transaction controller does not implement DBExecutor")
	}

	account, err := s.accountRepo.GetByUserID(ctx, txExecutor, userID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("audit: failed to get account %s: %w", userID, err)
	}

	sum, err := s.transactionRepo.SumByUserID(ctx, txExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to sum ledger for %s: %w", userID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("audit: failed to commit transaction: %w", err)
	}

	return &AuditReport{
		UserID:       userID,
		TokenBalance: account.TokenBalance,
		LedgerSum:    sum,
		Consistent:   account.TokenBalance == sum,
	}, nil
}
