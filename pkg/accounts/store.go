package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/feather-app/feather/pkg/observability"
)

// Postgres error codes we translate for clients
const (
	pqUniqueViolation  = "23505"
	pqInvalidTextValue = "22P02"
)

// AvatarStore is the slice of the avatar object store the account store needs:
// deriving the public URL at creation and cleaning up on delete.
type AvatarStore interface {
	PublicURL(id string) string
	Delete(ctx context.Context, id string) error
}

// Store persists accounts in Postgres
type Store struct {
	db         *sql.DB
	avatars    AvatarStore
	bcryptCost int
	logger     *observability.Logger
}

// NewStore creates an account store. avatars may be nil in tests that do not
// touch avatar columns.
func NewStore(db *sql.DB, avatars AvatarStore, bcryptCost int, logger *observability.Logger) *Store {
	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	return &Store{
		db:         db,
		avatars:    avatars,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

const accountColumns = `id, email, name, COALESCE(avatar, ''), COALESCE(password, ''), COALESCE(facebook_token, ''), COALESCE(facebook_id, ''), role, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Name,
		&a.AvatarURL,
		&a.PasswordHash,
		&a.FacebookToken,
		&a.FacebookID,
		&a.Role,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// translateError maps database errors to the package's error types
func translateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return &ValidationError{Message: "account already exists", Detail: pqErr.Detail}
		case pqInvalidTextValue:
			return ErrInvalidID
		}
	}
	return err
}

// Create inserts a new account. The password, when present, is hashed before
// the write. The avatar URL is derived from the object store so the client can
// upload to a predictable key.
func (s *Store) Create(ctx context.Context, in NewAccount) (*Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	a := &Account{
		ID:            uuid.NewString(),
		Email:         in.Email,
		Name:          in.Name,
		FacebookID:    in.FacebookID,
		FacebookToken: in.FacebookToken,
		Role:          in.Role,
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if s.avatars != nil {
		a.AvatarURL = s.avatars.PublicURL(a.ID)
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		a.PasswordHash = hash
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, avatar, password, facebook_token, facebook_id, role)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING created_at, updated_at`,
		a.ID, a.Email, a.Name, a.AvatarURL, a.PasswordHash, a.FacebookToken, a.FacebookID, a.Role,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}

	return a, nil
}

// GetByID fetches an account by its id
func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, translateError(err)
	}
	return a, nil
}

// GetByEmail fetches an account by email
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
	a, err := scanAccount(row)
	if err != nil {
		return nil, translateError(err)
	}
	return a, nil
}

// GetByFacebook looks up the account for a delegated identity: a facebook id
// match first, falling back to the profile email. Two distinct matches mean we
// cannot tell which account the identity belongs to, so the lookup fails
// closed rather than link the wrong account.
func (s *Store) GetByFacebook(ctx context.Context, facebookID, email string) (*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM users
		WHERE facebook_id = $1 OR email = $2
		ORDER BY (facebook_id = $1) DESC
		LIMIT 2`,
		facebookID, email)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var matches []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, translateError(err)
		}
		matches = append(matches, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, ErrAmbiguousIdentity
	}
}

// List returns all accounts ordered by creation time
func (s *Store) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, translateError(err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return accounts, nil
}

// ListByFacebookIDs returns the accounts whose facebook id is in ids.
// Used to split a friend list into registered and non-registered users.
func (s *Store) ListByFacebookIDs(ctx context.Context, ids []string) ([]*Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE facebook_id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, translateError(err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return accounts, nil
}

// Update applies a partial update to an account and returns the new row.
// The password is re-hashed only when the patch carries one; any other update
// leaves the stored hash untouched.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	if patch.Empty() {
		return s.GetByID(ctx, id)
	}
	if patch.Role != nil && *patch.Role != RoleUser && *patch.Role != RoleAdmin {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown role %q", *patch.Role)}
	}

	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	args = append(args, id)

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Avatar != nil {
		add("avatar", *patch.Avatar)
	}
	if patch.Password != nil {
		hash, err := HashPassword(*patch.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		add("password", hash)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	set = append(set, "updated_at = NOW()")

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(set, ", "), accountColumns)

	row := s.db.QueryRowContext(ctx, query, args...)
	a, err := scanAccount(row)
	if err != nil {
		return nil, translateError(err)
	}
	return a, nil
}

// LinkFacebook attaches a delegated identity to an existing account and
// refreshes the stored access token
func (s *Store) LinkFacebook(ctx context.Context, id, facebookID, facebookToken string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET facebook_id = $2, facebook_token = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns,
		id, facebookID, facebookToken)
	a, err := scanAccount(row)
	if err != nil {
		return nil, translateError(err)
	}
	return a, nil
}

// Delete removes an account, then cleans up its avatar object. Object cleanup
// is best effort: the row is already gone and the delete must not fail on a
// storage hiccup.
func (s *Store) Delete(ctx context.Context, a *Account) error {
	if _, err := uuid.Parse(a.ID); err != nil {
		return ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, a.ID)
	if err != nil {
		return translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if s.avatars != nil && a.AvatarURL != "" {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.avatars.Delete(cleanupCtx, a.ID); err != nil && s.logger != nil {
			s.logger.WithError(err).WithField("account_id", a.ID).Warn("avatar cleanup failed")
		}
	}

	return nil
}
