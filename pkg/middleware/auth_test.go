package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-app/feather/pkg/auth"
	"github.com/feather-app/feather/pkg/contextkeys"
)

func newTokens(t *testing.T, ttl time.Duration) *auth.TokenService {
	t.Helper()
	return auth.NewTokenService("test-secret", ttl)
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	tokens := newTokens(t, time.Hour)
	token, err := tokens.Issue("account-1", "user")
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "raw token", authHeader: token, wantStatus: http.StatusOK},
		{name: "bearer prefix", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "garbage", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			handler := Authenticate(tokens)(okHandler(&called))

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
		})
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	expired := newTokens(t, -time.Minute)
	token, err := expired.Issue("account-1", "user")
	require.NoError(t, err)

	var called bool
	handler := Authenticate(newTokens(t, time.Hour))(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
	assert.False(t, called)
}

func TestAuthenticateStoresClaims(t *testing.T) {
	tokens := newTokens(t, time.Hour)
	token, err := tokens.Issue("account-1", "admin")
	require.NoError(t, err)

	var got *auth.Claims
	handler := Authenticate(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "account-1", got.AccountID)
	assert.Equal(t, "admin", got.Role)
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{name: "admin allowed", role: "admin", wantStatus: http.StatusOK},
		{name: "user forbidden", role: "user", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			handler := RequireAdmin(okHandler(&called))

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			ctx := contextkeys.WithClaims(req.Context(), &auth.Claims{AccountID: "a", Role: tt.role})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireAdminWithoutClaims(t *testing.T) {
	var called bool
	handler := RequireAdmin(okHandler(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestResolveSelfID(t *testing.T) {
	var gotID string
	handler := ResolveSelfID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = contextkeys.GetSelfAccountID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPut, "/users/me", nil)
	ctx := contextkeys.WithClaims(req.Context(), &auth.Claims{AccountID: "account-1", Role: "user"})
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	assert.Equal(t, "account-1", gotID)
}
