package api

import (
	"net/http"

	"github.com/feather-app/feather/pkg/httputil"
)

// login handles POST /auth
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	account, err := s.local.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.countLogin("local", "failure")
		s.writeAccountError(w, r, err)
		return
	}

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}

	s.countLogin("local", "success")
	s.countTokenIssued()
	httputil.WriteSuccess(w, authResponse{
		Token: token,
		User:  account.Public(),
	})
}

// loginFacebook handles POST /auth/facebook. The access token may also come
// in as a query parameter, matching what Facebook client SDKs send.
func (s *Server) loginFacebook(w http.ResponseWriter, r *http.Request) {
	var req facebookAuthRequest
	// body is optional when the token is in the query string
	_ = httputil.ParseJSON(r, &req)
	if req.AccessToken == "" {
		req.AccessToken = r.URL.Query().Get("access_token")
	}

	outcome, err := s.facebook.Authenticate(r.Context(), req.AccessToken)
	if err != nil {
		s.countLogin("facebook", "failure")
		s.writeAccountError(w, r, err)
		return
	}

	s.countLogin("facebook", "success")
	s.countTokenIssued()

	resp := facebookAuthResponse{
		Token: outcome.Token,
		User:  outcome.Account.Public(),
	}
	if outcome.Created {
		s.countAccountCreated("facebook")
		resp.URL = outcome.AvatarUploadURL
		httputil.WriteCreated(w, resp)
		return
	}
	httputil.WriteSuccess(w, resp)
}
