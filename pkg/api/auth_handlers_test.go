package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-app/feather/pkg/auth"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.local.account = testAccount()

	rec := f.do(t, http.MethodPost, "/auth", "", map[string]string{
		"email":    "jane@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp authResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "jane@example.com", resp.User.Email)

	claims, err := f.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, testAccountID, claims.AccountID)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.local.err = auth.ErrUnauthorized

	rec := f.do(t, http.MethodPost, "/auth", "", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestLoginMissingFields(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "no email", body: map[string]string{"password": "x"}},
		{name: "no password", body: map[string]string{"email": "jane@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/auth", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoginFacebookLinksExisting(t *testing.T) {
	f := newFixture(t)
	account := testAccount()
	account.FacebookID = "fb-123"
	f.delegated.outcome = &auth.Outcome{Account: account, Token: "session-token"}

	rec := f.do(t, http.MethodPost, "/auth/facebook", "", map[string]string{
		"access_token": "fb-access",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp facebookAuthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "session-token", resp.Token)
	assert.Equal(t, "fb-123", resp.User.FacebookID)
	assert.Empty(t, resp.URL)
}

func TestLoginFacebookSignsUp(t *testing.T) {
	f := newFixture(t)
	f.delegated.outcome = &auth.Outcome{
		Account:         testAccount(),
		Token:           "session-token",
		Created:         true,
		AvatarUploadURL: "https://signed-upload",
	}

	rec := f.do(t, http.MethodPost, "/auth/facebook", "", map[string]string{
		"access_token": "fb-access",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp facebookAuthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "https://signed-upload", resp.URL)
}

func TestLoginFacebookTokenInQuery(t *testing.T) {
	f := newFixture(t)
	f.delegated.outcome = &auth.Outcome{Account: testAccount(), Token: "session-token"}

	rec := f.do(t, http.MethodPost, "/auth/facebook?access_token=fb-access", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFacebookMissingToken(t *testing.T) {
	f := newFixture(t)
	f.delegated.err = auth.ErrMissingToken

	rec := f.do(t, http.MethodPost, "/auth/facebook", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFacebookRejectedToken(t *testing.T) {
	f := newFixture(t)
	f.delegated.err = auth.ErrUnauthorized

	rec := f.do(t, http.MethodPost, "/auth/facebook", "", map[string]string{
		"access_token": "bad",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFacebookAvatarImportFailure(t *testing.T) {
	f := newFixture(t)
	f.delegated.err = auth.ErrAvatarImport

	rec := f.do(t, http.MethodPost, "/auth/facebook", "", map[string]string{
		"access_token": "fb-access",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
