// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"impact-ledger/internal/api/handler"
	"impact-ledger/internal/auth"
)

// NewRouter sets up and returns a new HTTP router. Listing reads are
// public; everything that identifies a caller sits behind the credential
// middleware, so unauthenticated requests never reach the ledger.
func NewRouter(
	ledgerHandler *handler.LedgerHandler,
	productHandler *handler.ProductHandler,
	verifier auth.Verifier,
	allowedOrigins []string,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Public marketplace reads
	r.Get("/products", productHandler.List)
	r.Get("/products/{productID}", productHandler.Get)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))

		r.Post("/purchase", ledgerHandler.Purchase)
		r.Get("/me/balance", ledgerHandler.MyBalance)
		r.Get("/me/transactions", ledgerHandler.MyTransactions)

		r.Post("/products", productHandler.Create)
		r.Patch("/products/{productID}", productHandler.Update)

		// Service-role only
		r.Post("/awards", ledgerHandler.Award)
		r.Get("/accounts/{userID}/audit", ledgerHandler.Audit)
	})

	return r
}
