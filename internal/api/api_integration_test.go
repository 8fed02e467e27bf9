// internal/api/api_integration_test.go
package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "impact-ledger/internal"
	"impact-ledger/internal/domain"
)

// These tests need a real PostgreSQL instance with the migrations applied.
// Set LEDGER_INTEGRATION=1 (plus the usual DB_* variables) to run them.

// testApp is the global application instance for testing.
var testApp *app.Application

// testServer is the httptest server.
var testServer *httptest.Server

const testJWTSecret = "integration-test-secret"

func integrationEnabled() bool {
	return os.Getenv("LEDGER_INTEGRATION") != ""
}

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if !integrationEnabled() {
		t.Skip("set LEDGER_INTEGRATION=1 to run integration tests")
	}
}

// TestMain is the special entry point for Go tests, executed once before all tests.
func TestMain(m *testing.M) {
	if !integrationEnabled() {
		os.Exit(m.Run())
	}

	setupEnvVars()

	testApp = app.NewApplication()
	if err := testApp.Initialize(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize test application: %v\n", err)
		os.Exit(1)
	}

	testServer = httptest.NewServer(testApp.HTTPHandler)
	defer testServer.Close()

	code := m.Run()

	if err := testApp.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown test application: %v\n", err)
		os.Exit(1)
	}

	os.Exit(code)
}

// setupEnvVars helper function: sets or checks environment variables required for testing.
func setupEnvVars() {
	if os.Getenv("SERVER_PORT") == "" {
		os.Setenv("SERVER_PORT", "8080")
	}
	if os.Getenv("DB_HOST") == "" {
		os.Setenv("DB_HOST", "localhost")
	}
	if os.Getenv("DB_PORT") == "" {
		os.Setenv("DB_PORT", "5432")
	}
	if os.Getenv("DB_USER") == "" {
		os.Setenv("DB_USER", "impact")
	}
	if os.Getenv("DB_PASSWORD") == "" {
		os.Setenv("DB_PASSWORD", "impact")
	}
	if os.Getenv("DB_NAME") == "" {
		os.Setenv("DB_NAME", "impactledger_test")
	}
	if os.Getenv("DB_SSLMODE") == "" {
		os.Setenv("DB_SSLMODE", "disable")
	}
	os.Setenv("JWT_SECRET", testJWTSecret)
}

// clearDatabase helper function: truncates all relevant tables so each test
// starts from a clean state.
func clearDatabase(t *testing.T) {
	tables := []string{"token_transactions", "products", "accounts"}
	for _, table := range tables {
		_, err := testApp.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE;", table))
		require.NoError(t, err, "Failed to truncate table %s", table)
	}
}

// createTestAccount provisions an account with the given balance and returns
// its user ID.
func createTestAccount(t *testing.T, balance int64) string {
	userID := uuid.NewString()
	err := testApp.AccountRepository.EnsureAccount(context.Background(), testApp.DB, userID)
	require.NoError(t, err)

	// Set the balance directly for test setup; awards are not the subject here.
	_, err = testApp.DB.ExecContext(context.Background(),
		"UPDATE accounts SET token_balance = $1 WHERE user_id = $2", balance, userID)
	require.NoError(t, err)

	return userID
}

// createTestProduct inserts an active listing and returns it.
func createTestProduct(t *testing.T, sellerID string, price, stock int64) *domain.Product {
	product := domain.NewProduct(sellerID, "Test Listing", nil, price, stock)
	err := testApp.ProductRepository.Create(context.Background(), testApp.DB, product)
	require.NoError(t, err)
	return product
}

func signTestToken(t *testing.T, userID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// makeRequest helper function: sends an authenticated HTTP request to the
// test server.
func makeRequest(t *testing.T, method, path, token string, body io.Reader) (*http.Response, string) {
	req, err := http.NewRequest(method, testServer.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(respBody)
}

func accountBalance(t *testing.T, userID string) int64 {
	var balance int64
	err := testApp.DB.GetContext(context.Background(), &balance,
		"SELECT token_balance FROM accounts WHERE user_id = $1", userID)
	require.NoError(t, err)
	return balance
}

func productStock(t *testing.T, productID string) int64 {
	var stock int64
	err := testApp.DB.GetContext(context.Background(), &stock,
		"SELECT stock_quantity FROM products WHERE id = $1", productID)
	require.NoError(t, err)
	return stock
}

func ledgerEntryCount(t *testing.T, userID string) int64 {
	var count int64
	err := testApp.DB.GetContext(context.Background(), &count,
		"SELECT COUNT(*) FROM token_transactions WHERE user_id = $1", userID)
	require.NoError(t, err)
	return count
}

// TestPurchaseIntegration exercises the purchase endpoint against a real
// database.
func TestPurchaseIntegration(t *testing.T) {
	skipUnlessIntegration(t)
	clearDatabase(t)

	sellerID := createTestAccount(t, 0)

	t.Run("SuccessfulPurchase", func(t *testing.T) {
		buyerID := createTestAccount(t, 500)
		product := createTestProduct(t, sellerID, 100, 3)
		token := signTestToken(t, buyerID, "")

		requestBody := fmt.Sprintf(`{"product_id": "%s", "tokens_required": 100}`, product.ID)
		resp, body := makeRequest(t, "POST", "/purchase", token, strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var responseMap map[string]interface{}
		err := json.Unmarshal([]byte(body), &responseMap)
		require.NoError(t, err)
		assert.Equal(t, float64(400), responseMap["remaining_tokens"])

		// All three effects landed together.
		assert.Equal(t, int64(400), accountBalance(t, buyerID))
		assert.Equal(t, int64(2), productStock(t, product.ID))
		assert.Equal(t, int64(1), ledgerEntryCount(t, buyerID))
	})

	t.Run("InsufficientTokens", func(t *testing.T) {
		buyerID := createTestAccount(t, 10)
		product := createTestProduct(t, sellerID, 100, 3)
		token := signTestToken(t, buyerID, "")

		requestBody := fmt.Sprintf(`{"product_id": "%s", "tokens_required": 100}`, product.ID)
		resp, body := makeRequest(t, "POST", "/purchase", token, strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "insufficient tokens")

		// Nothing was applied.
		assert.Equal(t, int64(10), accountBalance(t, buyerID))
		assert.Equal(t, int64(3), productStock(t, product.ID))
		assert.Equal(t, int64(0), ledgerEntryCount(t, buyerID))
	})

	t.Run("InactiveProduct", func(t *testing.T) {
		buyerID := createTestAccount(t, 500)
		product := createTestProduct(t, sellerID, 100, 3)
		_, err := testApp.DB.ExecContext(context.Background(),
			"UPDATE products SET is_active = FALSE WHERE id = $1", product.ID)
		require.NoError(t, err)
		token := signTestToken(t, buyerID, "")

		requestBody := fmt.Sprintf(`{"product_id": "%s", "tokens_required": 100}`, product.ID)
		resp, body := makeRequest(t, "POST", "/purchase", token, strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "product unavailable")
		assert.Equal(t, int64(500), accountBalance(t, buyerID))
	})

	t.Run("PriceMismatch", func(t *testing.T) {
		buyerID := createTestAccount(t, 500)
		product := createTestProduct(t, sellerID, 150, 3)
		token := signTestToken(t, buyerID, "")

		// The client saw 100; the listing says 150.
		requestBody := fmt.Sprintf(`{"product_id": "%s", "tokens_required": 100}`, product.ID)
		resp, body := makeRequest(t, "POST", "/purchase", token, strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "invalid purchase request")
		assert.Equal(t, int64(500), accountBalance(t, buyerID))
		assert.Equal(t, int64(3), productStock(t, product.ID))
	})

	t.Run("SelfPurchaseAllowed", func(t *testing.T) {
		ownerID := createTestAccount(t, 500)
		product := createTestProduct(t, ownerID, 100, 1)
		token := signTestToken(t, ownerID, "")

		requestBody := fmt.Sprintf(`{"product_id": "%s", "tokens_required": 100}`, product.ID)
		resp, _ := makeRequest(t, "POST", "/purchase", token, strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(400), accountBalance(t, ownerID))
		assert.Equal(t, int64(0), productStock(t, product.ID))
	})
}

// TestLastUnitRace pits two buyers against the final unit of a product.
// Exactly one purchase must succeed.
func TestLastUnitRace(t *testing.T) {
	skipUnlessIntegration(t)
	clearDatabase(t)

	sellerID := createTestAccount(t, 0)
	product := createTestProduct(t, sellerID, 100, 1)

	buyers := []string{createTestAccount(t, 500), createTestAccount(t, 500)}
	statuses := make([]int, len(buyers))

	var wg sync.WaitGroup
	for i, buyerID := range buyers {
		wg.Add(1)
		go func(i int, buyerID string) {
			defer wg.Done()
			token := signTestToken(t, buyerID, "")
			requestBody := fmt.Sprintf(`{"product_id": "%s", "tokens_required": 100}`, product.ID)
			resp, _ := makeRequest(t, "POST", "/purchase", token, strings.NewReader(requestBody))
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i, buyerID)
	}
	wg.Wait()

	wins := 0
	for _, status := range statuses {
		if status == http.StatusOK {
			wins++
		} else {
			assert.Equal(t, http.StatusNotFound, status)
		}
	}
	assert.Equal(t, 1, wins, "exactly one buyer should win the last unit")
	assert.Equal(t, int64(0), productStock(t, product.ID))

	// The loser's balance is untouched; the winner paid exactly once.
	total := accountBalance(t, buyers[0]) + accountBalance(t, buyers[1])
	assert.Equal(t, int64(900), total)
}

// TestAwardAndAuditIntegration walks tokens through award, purchase and
// reconciliation.
func TestAwardAndAuditIntegration(t *testing.T) {
	skipUnlessIntegration(t)
	clearDatabase(t)

	serviceToken := signTestToken(t, uuid.NewString(), "service")
	userID := uuid.NewString()

	// Award onto a not-yet-provisioned account.
	requestBody := fmt.Sprintf(`{"user_id": "%s", "amount": 300, "type": "signup_bonus"}`, userID)
	resp, body := makeRequest(t, "POST", "/awards", serviceToken, strings.NewReader(requestBody))
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, int64(300), accountBalance(t, userID))

	// Spend some of it.
	sellerID := createTestAccount(t, 0)
	product := createTestProduct(t, sellerID, 100, 5)
	userToken := signTestToken(t, userID, "")
	requestBody = fmt.Sprintf(`{"product_id": "%s", "tokens_required": 100}`, product.ID)
	respBuy, _ := makeRequest(t, "POST", "/purchase", userToken, strings.NewReader(requestBody))
	defer respBuy.Body.Close()
	require.Equal(t, http.StatusOK, respBuy.StatusCode)

	// The ledger must reconcile with the balance.
	respAudit, auditBody := makeRequest(t, "GET", "/accounts/"+userID+"/audit", serviceToken, nil)
	defer respAudit.Body.Close()
	require.Equal(t, http.StatusOK, respAudit.StatusCode)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(auditBody), &report))
	assert.Equal(t, true, report["consistent"])
	assert.Equal(t, float64(200), report["token_balance"])
	assert.Equal(t, float64(200), report["ledger_sum"])

	// History shows both entries, newest first.
	respHist, histBody := makeRequest(t, "GET", "/me/transactions", userToken, nil)
	defer respHist.Body.Close()
	require.Equal(t, http.StatusOK, respHist.StatusCode)
	assert.Contains(t, histBody, `"total_count":2`)
	assert.Contains(t, histBody, "marketplace_purchase")
	assert.Contains(t, histBody, "signup_bonus")
}

// TestLedgerAppendOnly verifies that ledger rows cannot be rewritten or
// removed once written, even by direct SQL outside the repository layer.
func TestLedgerAppendOnly(t *testing.T) {
	skipUnlessIntegration(t)
	clearDatabase(t)

	serviceToken := signTestToken(t, uuid.NewString(), "service")
	userID := uuid.NewString()

	requestBody := fmt.Sprintf(`{"user_id": "%s", "amount": 100, "type": "signup_bonus"}`, userID)
	resp, body := makeRequest(t, "POST", "/awards", serviceToken, strings.NewReader(requestBody))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	_, err := testApp.DB.ExecContext(context.Background(),
		"UPDATE token_transactions SET amount = 0 WHERE user_id = $1", userID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = testApp.DB.ExecContext(context.Background(),
		"DELETE FROM token_transactions WHERE user_id = $1", userID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	// The entry survived untouched.
	assert.Equal(t, int64(1), ledgerEntryCount(t, userID))
	assert.Equal(t, int64(100), accountBalance(t, userID))
}

// TestProductLifecycleIntegration covers listing creation and seller edits.
func TestProductLifecycleIntegration(t *testing.T) {
	skipUnlessIntegration(t)
	clearDatabase(t)

	sellerID := createTestAccount(t, 0)
	sellerToken := signTestToken(t, sellerID, "")

	requestBody := `{"name": "Argan Soap", "price_tokens": 30, "stock_quantity": 12}`
	resp, body := makeRequest(t, "POST", "/products", sellerToken, strings.NewReader(requestBody))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	productID := created["id"].(string)

	// Listings are publicly readable.
	respList, listBody := makeRequest(t, "GET", "/products", "", nil)
	defer respList.Body.Close()
	assert.Equal(t, http.StatusOK, respList.StatusCode)
	assert.Contains(t, listBody, "Argan Soap")

	// The seller can reprice their listing.
	respPatch, _ := makeRequest(t, "PATCH", "/products/"+productID, sellerToken,
		strings.NewReader(`{"price_tokens": 45}`))
	defer respPatch.Body.Close()
	assert.Equal(t, http.StatusOK, respPatch.StatusCode)

	// Someone else cannot.
	otherToken := signTestToken(t, createTestAccount(t, 0), "")
	respForbidden, _ := makeRequest(t, "PATCH", "/products/"+productID, otherToken,
		strings.NewReader(`{"price_tokens": 1}`))
	defer respForbidden.Body.Close()
	assert.Equal(t, http.StatusForbidden, respForbidden.StatusCode)

	assert.Equal(t, int64(12), productStock(t, productID))
}
