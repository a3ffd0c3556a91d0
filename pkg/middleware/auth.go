// Package middleware implements request authentication and role gating for
// the HTTP API.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/feather-app/feather/pkg/auth"
	"github.com/feather-app/feather/pkg/contextkeys"
	"github.com/feather-app/feather/pkg/httputil"
)

// Verifier verifies session tokens
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Authenticate requires a valid session token in the Authorization header.
// The raw token is accepted as-is; a "Bearer " prefix is tolerated. Verified
// claims are stored in the request context for downstream handlers.
func Authenticate(tokens Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if raw == "" {
				httputil.WriteUnauthorized(w, "authorization required")
				return
			}
			raw = strings.TrimPrefix(raw, "Bearer ")

			claims, err := tokens.Verify(raw)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					httputil.WriteUnauthorized(w, "token expired")
				default:
					httputil.WriteUnauthorized(w, "invalid token")
				}
				return
			}

			ctx := contextkeys.WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers whose verified claims are not admin.
// Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			httputil.WriteUnauthorized(w, "authorization required")
			return
		}
		if !claims.IsAdmin() {
			httputil.WriteForbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResolveSelfID copies the caller's account id from the verified claims into
// the self-id context slot. Routes mounted under /users/me use this so their
// handlers resolve "me" without trusting anything client-supplied.
func ResolveSelfID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			httputil.WriteUnauthorized(w, "authorization required")
			return
		}
		ctx := contextkeys.WithSelfAccountID(r.Context(), claims.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the verified claims set by Authenticate, or nil
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(contextkeys.ClaimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
