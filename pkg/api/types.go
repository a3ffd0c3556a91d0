package api

import (
	"github.com/feather-app/feather/pkg/accounts"
	"github.com/feather-app/feather/pkg/facebook"
)

// credentialsRequest is the body for POST /auth
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// facebookAuthRequest is the body for POST /auth/facebook
type facebookAuthRequest struct {
	AccessToken string `json:"access_token"`
}

// signupRequest is the body for POST /users. Role is only honored for admin
// callers.
type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// updateRequest is the body for PUT /users/me. Absent fields are untouched.
type updateRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Avatar   *string `json:"avatar"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (r *updateRequest) patch() accounts.Patch {
	return accounts.Patch{
		Email:    r.Email,
		Name:     r.Name,
		Avatar:   r.Avatar,
		Password: r.Password,
		Role:     r.Role,
	}
}

// authResponse is the body for a local login
type authResponse struct {
	Token string        `json:"token"`
	User  accounts.View `json:"user"`
}

// facebookAuthResponse is the body for a delegated login. URL is the presigned
// avatar upload URL, present only when the login provisioned a new account.
type facebookAuthResponse struct {
	Token string        `json:"token"`
	User  accounts.View `json:"user"`
	URL   string        `json:"url,omitempty"`
}

// signupResponse is the body for POST /users
type signupResponse struct {
	Token           string        `json:"token"`
	User            accounts.View `json:"user"`
	AvatarSignedURL string        `json:"avatarSignedUrl"`
}

// userResponse wraps a single account view
type userResponse struct {
	User accounts.View `json:"user"`
}

// usersResponse wraps an account listing
type usersResponse struct {
	Users []accounts.View `json:"users"`
}

// successResponse acknowledges a delete
type successResponse struct {
	Success bool `json:"success"`
}

// friendsResponse splits the caller's Facebook friends into those with an
// account here and those without
type friendsResponse struct {
	RegisteredFriends    []accounts.View   `json:"registeredFriends"`
	NonRegisteredFriends []facebook.Friend `json:"nonRegisteredFriends"`
	Paging               facebook.Paging   `json:"paging"`
}

func views(list []*accounts.Account) []accounts.View {
	out := make([]accounts.View, 0, len(list))
	for _, a := range list {
		out = append(out, a.Public())
	}
	return out
}
