// internal/auth/auth.go
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Roles carried in the credential. Regular platform users (evaluators,
// project holders, investors) all act as RoleUser here; RoleService marks
// trusted backend callers allowed to invoke privileged routines such as
// token awards.
const (
	RoleUser    = "user"
	RoleService = "service"
)

// Identity is the verified caller extracted from a bearer credential. The
// gateway trusts it exclusively; identity fields in request bodies are
// never honored.
type Identity struct {
	UserID string
	Role   string
}

// Verifier validates a bearer credential and yields the caller identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

type contextKey struct{}

// IdentityFromContext returns the verified caller stored by Middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	return identity, ok
}

// WithIdentity returns a context carrying the given identity. Exposed for
// tests that exercise handlers without the middleware.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// Middleware authenticates requests with the given verifier. Requests
// without a valid bearer credential are rejected before any handler, and
// therefore before the ledger, is touched.
func Middleware(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				logger.Info("rejected credential", "path", r.URL.Path, "error", err)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
