package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/feather-app/feather/pkg/accounts"
	"github.com/feather-app/feather/pkg/contextkeys"
	"github.com/feather-app/feather/pkg/facebook"
	"github.com/feather-app/feather/pkg/httputil"
	"github.com/feather-app/feather/pkg/middleware"
)

// adminFromHeader verifies the Authorization header and checks for the admin
// role. Used by the unauthenticated signup route when the body asks for an
// elevated role.
func (s *Server) adminFromHeader(w http.ResponseWriter, r *http.Request) bool {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		httputil.WriteUnauthorized(w, "authorization required")
		return false
	}
	claims, err := s.tokens.Verify(strings.TrimPrefix(raw, "Bearer "))
	if err != nil {
		httputil.WriteUnauthorized(w, "invalid token")
		return false
	}
	if !claims.IsAdmin() {
		httputil.WriteForbidden(w, "admin access required")
		return false
	}
	return true
}

// createUser handles POST /users. Open signup, except that requesting a role
// in the body requires an authenticated admin.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	// Required-field failures surface as 422 like the rest of the write
	// validation. Password is checked here because delegated signups create
	// accounts without one.
	if req.Password == "" {
		s.writeAccountError(w, r, &accounts.ValidationError{Message: "password is required"})
		return
	}

	if req.Role != "" && !s.adminFromHeader(w, r) {
		return
	}

	account, err := s.store.Create(r.Context(), accounts.NewAccount{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}

	uploadURL, err := s.avatars.SignedUploadURL(r.Context(), account.ID)
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}

	s.countAccountCreated("local")
	s.countTokenIssued()
	httputil.WriteCreated(w, signupResponse{
		Token:           token,
		User:            account.Public(),
		AvatarSignedURL: uploadURL,
	})
}

// listUsers handles GET /users (admin)
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, usersResponse{Users: views(list)})
}

// getUser handles GET /users/{id}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	account, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, userResponse{User: account.Public()})
}

// updateSelf handles PUT /users/me. Changing the role requires admin claims;
// everything else only requires being the account owner.
func (s *Server) updateSelf(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Role != nil {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil || !claims.IsAdmin() {
			httputil.WriteForbidden(w, "admin access required")
			return
		}
	}

	id := contextkeys.GetSelfAccountID(r.Context())
	account, err := s.store.Update(r.Context(), id, req.patch())
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, userResponse{User: account.Public()})
}

// deleteSelf handles DELETE /users/me
func (s *Server) deleteSelf(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, contextkeys.GetSelfAccountID(r.Context()))
}

// deleteUser handles DELETE /users/{id} (admin)
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	s.deleteByID(w, r, id)
}

func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request, id string) {
	account, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), account); err != nil {
		s.writeAccountError(w, r, err)
		return
	}
	s.countAccountDeleted()
	httputil.WriteSuccess(w, successResponse{Success: true})
}

// facebookFriends handles GET /users/me/facebook/friends. Splits the caller's
// Facebook friends into users registered here and the rest.
func (s *Server) facebookFriends(w http.ResponseWriter, r *http.Request) {
	account, err := s.store.GetByID(r.Context(), contextkeys.GetSelfAccountID(r.Context()))
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}
	if account.FacebookToken == "" {
		httputil.WriteBadRequest(w, "no linked facebook account")
		return
	}

	after := httputil.ParseQueryString(r, "after", "")
	limit := 0
	if str := r.URL.Query().Get("limit"); str != "" {
		limit, err = strconv.Atoi(str)
		if err != nil || limit < 0 {
			httputil.WriteBadRequest(w, "invalid limit")
			return
		}
	}

	page, err := s.friends.Friends(r.Context(), account.FacebookToken, after, limit)
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}

	ids := make([]string, 0, len(page.Friends))
	for _, f := range page.Friends {
		ids = append(ids, f.ID)
	}

	registered, err := s.store.ListByFacebookIDs(r.Context(), ids)
	if err != nil {
		s.writeAccountError(w, r, err)
		return
	}

	registeredIDs := make(map[string]bool, len(registered))
	for _, a := range registered {
		registeredIDs[a.FacebookID] = true
	}

	nonRegistered := make([]facebook.Friend, 0, len(page.Friends))
	for _, f := range page.Friends {
		if !registeredIDs[f.ID] {
			nonRegistered = append(nonRegistered, f)
		}
	}

	httputil.WriteSuccess(w, friendsResponse{
		RegisteredFriends:    views(registered),
		NonRegisteredFriends: nonRegistered,
		Paging:               page.Paging,
	})
}
