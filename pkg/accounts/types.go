// Package accounts implements the account credential store backed by Postgres.
package accounts

import (
	"errors"
	"fmt"
	"time"
)

// Role values stored on an account
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	// ErrNotFound is returned when no account matches the lookup
	ErrNotFound = errors.New("account not found")

	// ErrInvalidID is returned when an account id is not a valid UUID
	ErrInvalidID = errors.New("invalid account id")

	// ErrAmbiguousIdentity is returned when a delegated-identity lookup matches
	// more than one account. Linking must not guess; callers treat this as a
	// server-side failure.
	ErrAmbiguousIdentity = errors.New("delegated identity matches multiple accounts")
)

// ValidationError carries a client-facing message for rejected writes,
// including the constraint detail surfaced by Postgres on duplicates.
type ValidationError struct {
	Message string
	Detail  string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Account is the storage model for a user account. PasswordHash and
// FacebookToken are credentials and never leave this package as JSON;
// use Public() for anything that crosses the HTTP boundary.
type Account struct {
	ID            string
	Email         string
	Name          string
	AvatarURL     string
	PasswordHash  string
	FacebookID    string
	FacebookToken string
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// View is the public projection of an account
type View struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar,omitempty"`
	FacebookID string    `json:"facebookId,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public returns the projection of the account safe to serialize
func (a *Account) Public() View {
	return View{
		ID:         a.ID,
		Email:      a.Email,
		Name:       a.Name,
		Avatar:     a.AvatarURL,
		FacebookID: a.FacebookID,
		Role:       a.Role,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// HasPassword reports whether the account can authenticate locally
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// NewAccount is the input for creating an account. Password is the cleartext
// credential; the store hashes it before persisting. FacebookID/FacebookToken
// are set for delegated signups.
type NewAccount struct {
	Email         string
	Name          string
	Password      string
	Role          string
	FacebookID    string
	FacebookToken string
}

// Validate checks required fields before hitting the database
func (n *NewAccount) Validate() error {
	if n.Email == "" {
		return &ValidationError{Message: "email is required"}
	}
	if n.Name == "" {
		return &ValidationError{Message: "name is required"}
	}
	if n.Role != "" && n.Role != RoleUser && n.Role != RoleAdmin {
		return &ValidationError{Message: fmt.Sprintf("unknown role %q", n.Role)}
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched. Password is the
// only field with hash-on-write semantics: the store re-hashes iff it is
// non-nil, so an update that does not carry a password keeps the stored hash
// byte-identical.
type Patch struct {
	Email    *string
	Name     *string
	Avatar   *string
	Password *string
	Role     *string
}

// Empty reports whether the patch changes nothing
func (p *Patch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.Avatar == nil && p.Password == nil && p.Role == nil
}
