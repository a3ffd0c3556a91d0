package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feather-app/feather/pkg/accounts"
	"github.com/feather-app/feather/pkg/facebook"
)

// ErrAvatarImport is returned when importing the profile photo during a
// delegated signup fails. The signup is rejected; the client retries.
var ErrAvatarImport = errors.New("importing profile photo failed")

// GraphClient is the Graph API surface the delegated strategy needs
type GraphClient interface {
	Profile(ctx context.Context, accessToken string) (*facebook.Profile, error)
}

// FacebookStore is the account store surface the delegated strategy needs
type FacebookStore interface {
	GetByFacebook(ctx context.Context, facebookID, email string) (*accounts.Account, error)
	LinkFacebook(ctx context.Context, id, facebookID, facebookToken string) (*accounts.Account, error)
	Create(ctx context.Context, in accounts.NewAccount) (*accounts.Account, error)
}

// AvatarImporter presigns upload URLs and imports remote profile photos
type AvatarImporter interface {
	SignedUploadURL(ctx context.Context, id string) (string, error)
	Import(ctx context.Context, id, sourceURL string) error
}

// TokenIssuer issues session tokens
type TokenIssuer interface {
	Issue(accountID, role string) (string, error)
}

// Outcome is the result of a delegated login: the account (linked or newly
// created), a session token, and for signups a presigned avatar upload URL.
type Outcome struct {
	Account         *accounts.Account
	Token           string
	Created         bool
	AvatarUploadURL string
}

// FacebookStrategy authenticates Facebook access tokens, linking them to
// existing accounts or provisioning new ones from the Graph profile.
type FacebookStrategy struct {
	graph   GraphClient
	store   FacebookStore
	tokens  TokenIssuer
	avatars AvatarImporter
}

// NewFacebookStrategy creates a delegated authentication strategy
func NewFacebookStrategy(graph GraphClient, store FacebookStore, tokens TokenIssuer, avatars AvatarImporter) *FacebookStrategy {
	return &FacebookStrategy{
		graph:   graph,
		store:   store,
		tokens:  tokens,
		avatars: avatars,
	}
}

// Authenticate validates the access token with the Graph API and either links
// the identity to an existing account or signs up a new one from the profile.
func (s *FacebookStrategy) Authenticate(ctx context.Context, accessToken string) (*Outcome, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	profile, err := s.graph.Profile(ctx, accessToken)
	if err != nil {
		if errors.Is(err, facebook.ErrTokenRejected) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	if profile.ID == "" {
		return nil, ErrUnauthorized
	}

	account, err := s.store.GetByFacebook(ctx, profile.ID, profile.Email)
	switch {
	case err == nil:
		return s.link(ctx, account, profile.ID, accessToken)
	case errors.Is(err, accounts.ErrNotFound):
		return s.signup(ctx, profile, accessToken)
	default:
		return nil, err
	}
}

// link refreshes the stored identity on an existing account and issues a token
func (s *FacebookStrategy) link(ctx context.Context, account *accounts.Account, facebookID, accessToken string) (*Outcome, error) {
	linked, err := s.store.LinkFacebook(ctx, account.ID, facebookID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("linking account: %w", err)
	}

	token, err := s.tokens.Issue(linked.ID, linked.Role)
	if err != nil {
		return nil, err
	}

	return &Outcome{Account: linked, Token: token}, nil
}

// signup provisions an account from the Graph profile. The profile photo is
// imported synchronously unless Facebook reports it as the default silhouette;
// a failed import rejects the whole signup.
func (s *FacebookStrategy) signup(ctx context.Context, profile *facebook.Profile, accessToken string) (*Outcome, error) {
	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)

	account, err := s.store.Create(ctx, accounts.NewAccount{
		Email:         profile.Email,
		Name:          name,
		FacebookID:    profile.ID,
		FacebookToken: accessToken,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, err
	}

	uploadURL, err := s.avatars.SignedUploadURL(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("presigning avatar upload: %w", err)
	}

	if profile.Picture.Data.URL != "" && !profile.Picture.Data.IsSilhouette {
		if err := s.avatars.Import(ctx, account.ID, profile.Picture.Data.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAvatarImport, err)
		}
	}

	return &Outcome{
		Account:         account,
		Token:           token,
		Created:         true,
		AvatarUploadURL: uploadURL,
	}, nil
}
