package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/georgemunganga/retail-billing/internal/httpx"
)

type ctxKey struct{}

// CashierFrom returns the cashier RequireCashier stored in ctx.
func CashierFrom(ctx context.Context) (Cashier, bool) {
	c, ok := ctx.Value(ctxKey{}).(Cashier)
	return c, ok
}

// RequireCashier rejects requests without a valid "Authorization: Bearer <token>" header
// for the active session.
func RequireCashier(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" || token == header {
				httpx.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			c, err := svc.Verify(token)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, c)))
		})
	}
}
