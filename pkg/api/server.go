// Package api wires the HTTP routes to the account store and the
// authentication strategies.
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/feather-app/feather/pkg/accounts"
	"github.com/feather-app/feather/pkg/auth"
	"github.com/feather-app/feather/pkg/facebook"
	"github.com/feather-app/feather/pkg/httputil"
	"github.com/feather-app/feather/pkg/middleware"
	"github.com/feather-app/feather/pkg/observability"
)

// AccountStore is the persistence surface the handlers need
type AccountStore interface {
	Create(ctx context.Context, in accounts.NewAccount) (*accounts.Account, error)
	GetByID(ctx context.Context, id string) (*accounts.Account, error)
	List(ctx context.Context) ([]*accounts.Account, error)
	ListByFacebookIDs(ctx context.Context, ids []string) ([]*accounts.Account, error)
	Update(ctx context.Context, id string, patch accounts.Patch) (*accounts.Account, error)
	Delete(ctx context.Context, a *accounts.Account) error
}

// LocalAuthenticator authenticates email/password credentials
type LocalAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*accounts.Account, error)
}

// DelegatedAuthenticator authenticates Facebook access tokens
type DelegatedAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Outcome, error)
}

// FriendsClient reads the caller's friend list from the Graph API
type FriendsClient interface {
	Friends(ctx context.Context, accessToken, after string, limit int) (*facebook.FriendsPage, error)
}

// AvatarSigner presigns avatar upload URLs for signups
type AvatarSigner interface {
	SignedUploadURL(ctx context.Context, id string) (string, error)
}

// Server is the HTTP API server
type Server struct {
	router   *mux.Router
	db       *sql.DB
	store    AccountStore
	tokens   *auth.TokenService
	local    LocalAuthenticator
	facebook DelegatedAuthenticator
	friends  FriendsClient
	avatars  AvatarSigner
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewServer creates the API server and registers all routes
func NewServer(
	db *sql.DB,
	store AccountStore,
	tokens *auth.TokenService,
	local LocalAuthenticator,
	delegated DelegatedAuthenticator,
	friends FriendsClient,
	avatars AvatarSigner,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		db:       db,
		store:    store,
		tokens:   tokens,
		local:    local,
		facebook: delegated,
		friends:  friends,
		avatars:  avatars,
		logger:   logger,
		metrics:  metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	authed := middleware.Authenticate(s.tokens)
	self := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.ResolveSelfID(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}

	// auth routes
	s.router.HandleFunc("/auth", s.login).Methods("POST")
	s.router.HandleFunc("/auth/facebook", s.loginFacebook).Methods("POST")

	// /users/me routes are registered before /users/{id} so "me" never
	// reaches the id-parameterized handlers
	s.router.Handle("/users/me/facebook/friends", self(s.facebookFriends)).Methods("GET")
	s.router.Handle("/users/me", self(s.updateSelf)).Methods("PUT")
	s.router.Handle("/users/me", self(s.deleteSelf)).Methods("DELETE")

	s.router.HandleFunc("/users", s.createUser).Methods("POST")
	s.router.Handle("/users", admin(s.listUsers)).Methods("GET")
	s.router.Handle("/users/{id}", authed(http.HandlerFunc(s.getUser))).Methods("GET")
	s.router.Handle("/users/{id}", admin(s.deleteUser)).Methods("DELETE")

	s.router.HandleFunc("/healthz", s.health).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so callers can mount middleware
func (s *Server) Router() *mux.Router {
	return s.router
}

// health handles GET /healthz
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			httputil.WriteServiceUnavailable(w, "database unreachable")
			return
		}
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// metrics helpers are nil-safe so tests can build a server without a registry

func (s *Server) countLogin(strategy, status string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(strategy, status).Inc()
	}
}

func (s *Server) countTokenIssued() {
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.Inc()
	}
}

func (s *Server) countAccountCreated(origin string) {
	if s.metrics != nil {
		s.metrics.AccountsCreatedTotal.WithLabelValues(origin).Inc()
	}
}

func (s *Server) countAccountDeleted() {
	if s.metrics != nil {
		s.metrics.AccountsDeletedTotal.Inc()
	}
}

// writeAccountError maps domain errors to HTTP responses
func (s *Server) writeAccountError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *accounts.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteUnprocessableEntity(w, verr.Message, verr.Detail)
	case errors.Is(err, accounts.ErrNotFound):
		httputil.WriteNotFoundError(w, "user not found")
	case errors.Is(err, accounts.ErrInvalidID):
		httputil.WriteBadRequest(w, "invalid user id")
	case errors.Is(err, auth.ErrUnauthorized):
		httputil.WriteUnauthorized(w, "invalid credentials")
	case errors.Is(err, auth.ErrMissingToken):
		httputil.WriteBadRequest(w, "access token is required")
	case errors.Is(err, auth.ErrAvatarImport):
		httputil.WriteBadRequest(w, "could not import profile photo")
	case errors.Is(err, facebook.ErrTokenRejected):
		httputil.WriteUnauthorized(w, "facebook rejected the access token")
	case errors.Is(err, facebook.ErrGraphUnavailable):
		httputil.WriteBadRequest(w, "facebook graph api unavailable")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
