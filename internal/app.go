// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	router "impact-ledger/internal/api"
	"impact-ledger/internal/api/handler"
	"impact-ledger/internal/auth"
	"impact-ledger/internal/config"
	"impact-ledger/internal/lock"
	"impact-ledger/internal/repository"
	"impact-ledger/internal/repository/postgres"
	"impact-ledger/internal/service"
	"impact-ledger/internal/util"
	"impact-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	AccountRepository     repository.AccountRepository
	ProductRepository     repository.ProductRepository
	TransactionRepository repository.TransactionRepository

	// Services
	LedgerService  service.LedgerService
	ProductService service.ProductService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Optional Redis purchase guard. Without Redis the service still
	// runs; duplicate submissions are then serialized by the database
	// row locks alone.
	var guard service.PurchaseGuard
	if app.Config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     app.Config.RedisAddr,
			Password: app.Config.RedisPassword,
			DB:       app.Config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Redis = client
		guard = lock.NewPurchaseGuard(client)
		app.Logger.Info("Redis purchase guard enabled.")
	}

	// 5. Initialize Repositories
	app.AccountRepository = postgres.NewAccountRepository()
	app.ProductRepository = postgres.NewProductRepository()
	app.TransactionRepository = postgres.NewTransactionRepository()
	app.Logger.Info("Repositories initialized.")

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.LedgerService = service.NewLedgerService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.AccountRepository,
		app.ProductRepository,
		app.TransactionRepository,
		guard,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.ProductService = service.NewProductService(app.DB, app.ProductRepository)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	verifier := auth.NewJWTVerifier(app.Config.JWTSecret)
	ledgerHandler := handler.NewLedgerHandler(app.LedgerService, app.Logger)
	productHandler := handler.NewProductHandler(app.ProductService, app.Logger)
	app.HTTPHandler = router.NewRouter(ledgerHandler, productHandler, verifier, app.Config.CORSAllowedOrigins, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
