package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/feather-app/feather/pkg/accounts"
	"github.com/feather-app/feather/pkg/auth"
	"github.com/feather-app/feather/pkg/facebook"
	"github.com/feather-app/feather/pkg/observability"
)

const (
	testAccountID = "7f1f58b6-3812-42b5-ad18-d09aa425a0d1"
	otherID       = "0b7e3f6a-1c68-4b07-9d59-9e0c9c6fbb42"
)

func testAccount() *accounts.Account {
	return &accounts.Account{
		ID:        testAccountID,
		Email:     "jane@example.com",
		Name:      "Jane Doe",
		Role:      accounts.RoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

type stubStore struct {
	accounts  map[string]*accounts.Account
	createErr error
	created   *accounts.NewAccount
	updated   *accounts.Patch
	deleted   []string
	byFBIDs   []*accounts.Account
}

func newStubStore(list ...*accounts.Account) *stubStore {
	s := &stubStore{accounts: map[string]*accounts.Account{}}
	for _, a := range list {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *stubStore) Create(_ context.Context, in accounts.NewAccount) (*accounts.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = &in
	return &accounts.Account{
		ID:    testAccountID,
		Email: in.Email,
		Name:  in.Name,
		Role:  cmpOr(in.Role, accounts.RoleUser),
	}, nil
}

func cmpOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (s *stubStore) GetByID(_ context.Context, id string) (*accounts.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, accounts.ErrInvalidID
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return a, nil
}

func (s *stubStore) List(context.Context) ([]*accounts.Account, error) {
	out := make([]*accounts.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (s *stubStore) ListByFacebookIDs(context.Context, []string) ([]*accounts.Account, error) {
	return s.byFBIDs, nil
}

func (s *stubStore) Update(_ context.Context, id string, patch accounts.Patch) (*accounts.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	s.updated = &patch
	updated := *a
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Email != nil {
		updated.Email = *patch.Email
	}
	if patch.Role != nil {
		updated.Role = *patch.Role
	}
	return &updated, nil
}

func (s *stubStore) Delete(_ context.Context, a *accounts.Account) error {
	if _, ok := s.accounts[a.ID]; !ok {
		return accounts.ErrNotFound
	}
	delete(s.accounts, a.ID)
	s.deleted = append(s.deleted, a.ID)
	return nil
}

type stubLocal struct {
	account *accounts.Account
	err     error
}

func (s *stubLocal) Authenticate(context.Context, string, string) (*accounts.Account, error) {
	return s.account, s.err
}

type stubDelegated struct {
	outcome *auth.Outcome
	err     error
}

func (s *stubDelegated) Authenticate(context.Context, string) (*auth.Outcome, error) {
	return s.outcome, s.err
}

type stubFriends struct {
	page *facebook.FriendsPage
	err  error
}

func (s *stubFriends) Friends(context.Context, string, string, int) (*facebook.FriendsPage, error) {
	return s.page, s.err
}

type stubSigner struct {
	url string
	err error
}

func (s *stubSigner) SignedUploadURL(context.Context, string) (string, error) {
	return s.url, s.err
}

type serverFixture struct {
	server    *Server
	store     *stubStore
	local     *stubLocal
	delegated *stubDelegated
	friends   *stubFriends
	tokens    *auth.TokenService
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		store:     newStubStore(),
		local:     &stubLocal{},
		delegated: &stubDelegated{},
		friends:   &stubFriends{},
		tokens:    auth.NewTokenService("test-secret", time.Hour),
	}
	f.server = NewServer(
		nil, f.store, f.tokens, f.local, f.delegated, f.friends,
		&stubSigner{url: "https://signed-upload"},
		observability.NewLogger(observability.ErrorLevel, io.Discard),
		nil,
	)
	return f
}

func (f *serverFixture) tokenFor(t *testing.T, accountID, role string) string {
	t.Helper()
	token, err := f.tokens.Issue(accountID, role)
	require.NoError(t, err)
	return token
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}
