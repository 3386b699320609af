package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"vestry/pkg/domain"
	request "vestry/pkg/platform/middleware/request"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Account domain.AccountID
}

type contextKeyAccount struct{}

// ContextKeyAccount is exported for use in handlers
var ContextKeyAccount = contextKeyAccount{}

// GetAccount retrieves the authenticated account from the context.
func GetAccount(ctx context.Context) domain.AccountID {
	account, ok := ctx.Value(ContextKeyAccount).(domain.AccountID)
	if !ok {
		return domain.NilAccountID
	}
	return account
}

// WithAccount injects an account into a context. Useful for handler tests
// that don't run the full middleware chain.
func WithAccount(ctx context.Context, account domain.AccountID) context.Context {
	return context.WithValue(ctx, ContextKeyAccount, account)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer token and stores the caller's account in
// the request context. Requests without a valid token never reach the
// handler.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			after, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(after)
			if err != nil {
				ctx := r.Context()
				requestID := request.GetRequestID(ctx)
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			if claims.Account.IsNil() {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := WithAccount(r.Context(), claims.Account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
