package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/feather-app/feather/pkg/accounts"
)

var (
	// ErrUnauthorized is returned for any failed credential check. It is
	// deliberately uniform: unknown email, password-less account, and wrong
	// password are indistinguishable to the caller.
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrMissingToken is returned when a delegated login carries no access token
	ErrMissingToken = errors.New("access token is required")
)

// LocalStore is the account lookup the local strategy needs
type LocalStore interface {
	GetByEmail(ctx context.Context, email string) (*accounts.Account, error)
}

// LocalStrategy authenticates email/password credentials against stored
// bcrypt hashes
type LocalStrategy struct {
	store LocalStore
}

// NewLocalStrategy creates a local authentication strategy
func NewLocalStrategy(store LocalStore) *LocalStrategy {
	return &LocalStrategy{store: store}
}

// Authenticate verifies the credentials and returns the matching account.
// Every failure path costs a bcrypt comparison so timing does not reveal
// whether the email exists.
func (s *LocalStrategy) Authenticate(ctx context.Context, email, password string) (*accounts.Account, error) {
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}

	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			accounts.BurnCompare(password)
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if !account.HasPassword() {
		accounts.BurnCompare(password)
		return nil, ErrUnauthorized
	}

	if !accounts.VerifyPassword(account.PasswordHash, password) {
		return nil, ErrUnauthorized
	}

	return account, nil
}
