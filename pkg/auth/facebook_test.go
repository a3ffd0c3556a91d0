package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-app/feather/pkg/accounts"
	"github.com/feather-app/feather/pkg/facebook"
)

type stubGraph struct {
	profile *facebook.Profile
	err     error
}

func (s *stubGraph) Profile(context.Context, string) (*facebook.Profile, error) {
	return s.profile, s.err
}

type stubFacebookStore struct {
	existing  *accounts.Account
	lookupErr error
	createErr error

	linked  bool
	created *accounts.NewAccount
}

func (s *stubFacebookStore) GetByFacebook(context.Context, string, string) (*accounts.Account, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.existing, nil
}

func (s *stubFacebookStore) LinkFacebook(_ context.Context, id, fbID, token string) (*accounts.Account, error) {
	s.linked = true
	linked := *s.existing
	linked.FacebookID = fbID
	linked.FacebookToken = token
	return &linked, nil
}

func (s *stubFacebookStore) Create(_ context.Context, in accounts.NewAccount) (*accounts.Account, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = &in
	return &accounts.Account{
		ID:            "new-account-id",
		Email:         in.Email,
		Name:          in.Name,
		FacebookID:    in.FacebookID,
		FacebookToken: in.FacebookToken,
		Role:          accounts.RoleUser,
	}, nil
}

type stubImporter struct {
	uploadURL string
	importErr error
	imported  []string
}

func (s *stubImporter) SignedUploadURL(context.Context, string) (string, error) {
	return s.uploadURL, nil
}

func (s *stubImporter) Import(_ context.Context, _ string, sourceURL string) error {
	s.imported = append(s.imported, sourceURL)
	return s.importErr
}

type stubIssuer struct{}

func (stubIssuer) Issue(accountID, role string) (string, error) {
	return "token-for-" + accountID, nil
}

func profileWithPicture(url string, silhouette bool) *facebook.Profile {
	p := &facebook.Profile{
		ID:        "fb-123",
		Email:     "jane@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
	}
	p.Picture.Data.URL = url
	p.Picture.Data.IsSilhouette = silhouette
	return p
}

func TestFacebookAuthenticateMissingToken(t *testing.T) {
	strategy := NewFacebookStrategy(&stubGraph{}, &stubFacebookStore{}, stubIssuer{}, &stubImporter{})

	_, err := strategy.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestFacebookAuthenticateRejectedToken(t *testing.T) {
	strategy := NewFacebookStrategy(
		&stubGraph{err: facebook.ErrTokenRejected},
		&stubFacebookStore{}, stubIssuer{}, &stubImporter{})

	_, err := strategy.Authenticate(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFacebookAuthenticateProfileWithoutID(t *testing.T) {
	strategy := NewFacebookStrategy(
		&stubGraph{profile: &facebook.Profile{Email: "x@y.z"}},
		&stubFacebookStore{}, stubIssuer{}, &stubImporter{})

	_, err := strategy.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFacebookAuthenticateLinksExistingAccount(t *testing.T) {
	store := &stubFacebookStore{existing: &accounts.Account{
		ID:    "account-1",
		Email: "jane@example.com",
		Role:  accounts.RoleUser,
	}}
	strategy := NewFacebookStrategy(
		&stubGraph{profile: profileWithPicture("", false)},
		store, stubIssuer{}, &stubImporter{})

	outcome, err := strategy.Authenticate(context.Background(), "access-token")
	require.NoError(t, err)

	assert.True(t, store.linked)
	assert.False(t, outcome.Created)
	assert.Equal(t, "fb-123", outcome.Account.FacebookID)
	assert.Equal(t, "access-token", outcome.Account.FacebookToken)
	assert.Equal(t, "token-for-account-1", outcome.Token)
	assert.Empty(t, outcome.AvatarUploadURL)
}

func TestFacebookAuthenticateSignsUpNewAccount(t *testing.T) {
	store := &stubFacebookStore{lookupErr: accounts.ErrNotFound}
	importer := &stubImporter{uploadURL: "https://signed-upload"}
	strategy := NewFacebookStrategy(
		&stubGraph{profile: profileWithPicture("https://graph/pic.jpg", false)},
		store, stubIssuer{}, importer)

	outcome, err := strategy.Authenticate(context.Background(), "access-token")
	require.NoError(t, err)

	require.NotNil(t, store.created)
	assert.Equal(t, "Jane Doe", store.created.Name)
	assert.Equal(t, "jane@example.com", store.created.Email)
	assert.Equal(t, "fb-123", store.created.FacebookID)
	assert.Equal(t, "access-token", store.created.FacebookToken)

	assert.True(t, outcome.Created)
	assert.Equal(t, "token-for-new-account-id", outcome.Token)
	assert.Equal(t, "https://signed-upload", outcome.AvatarUploadURL)
	assert.Equal(t, []string{"https://graph/pic.jpg"}, importer.imported)
}

func TestFacebookAuthenticateSkipsSilhouetteAvatar(t *testing.T) {
	store := &stubFacebookStore{lookupErr: accounts.ErrNotFound}
	importer := &stubImporter{uploadURL: "https://signed-upload"}
	strategy := NewFacebookStrategy(
		&stubGraph{profile: profileWithPicture("https://graph/silhouette.jpg", true)},
		store, stubIssuer{}, importer)

	outcome, err := strategy.Authenticate(context.Background(), "access-token")
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.Empty(t, importer.imported)
}

func TestFacebookAuthenticateFailsSignupOnImportError(t *testing.T) {
	store := &stubFacebookStore{lookupErr: accounts.ErrNotFound}
	importer := &stubImporter{importErr: errors.New("fetch failed")}
	strategy := NewFacebookStrategy(
		&stubGraph{profile: profileWithPicture("https://graph/pic.jpg", false)},
		store, stubIssuer{}, importer)

	_, err := strategy.Authenticate(context.Background(), "access-token")
	assert.ErrorIs(t, err, ErrAvatarImport)
}

func TestFacebookAuthenticateAmbiguousIdentityFailsClosed(t *testing.T) {
	store := &stubFacebookStore{lookupErr: accounts.ErrAmbiguousIdentity}
	strategy := NewFacebookStrategy(
		&stubGraph{profile: profileWithPicture("", false)},
		store, stubIssuer{}, &stubImporter{})

	_, err := strategy.Authenticate(context.Background(), "access-token")
	assert.ErrorIs(t, err, accounts.ErrAmbiguousIdentity)
	assert.False(t, store.linked)
	assert.Nil(t, store.created)
}
