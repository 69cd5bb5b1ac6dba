package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/db"
)

// AccountStore implements chat.AccountDirectory with bcrypt-hashed passwords.
type AccountStore struct {
	db   *db.DB
	cost int

	// dummyHash is compared against when a username is unknown so that
	// failed logins take the same time either way.
	dummyHash []byte
}

var _ chat.AccountDirectory = (*AccountStore)(nil)

// NewAccountStore creates an account store. A hashCost of 0 selects
// bcrypt.DefaultCost.
func NewAccountStore(database *db.DB, hashCost int) *AccountStore {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("parley-dummy-password"), hashCost)
	return &AccountStore{db: database, cost: hashCost, dummyHash: dummy}
}

// NewAccount is the input for Create.
type NewAccount struct {
	Username string
	Name     string
	Password string
}

// ProfileUpdate carries optional profile changes; nil fields are left as is.
type ProfileUpdate struct {
	Name    *string
	Profile *string
	Bio     *string
	Status  *string
}

const accountColumns = "id, username, name, profile, bio, status, created_at"

// Create registers a new account. Returns chat.ErrAccountExists when the
// username is taken.
func (s *AccountStore) Create(ctx context.Context, in NewAccount) (chat.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return chat.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = s.db.QueryRowContext(ctx,
		"INSERT INTO accounts (username, name, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id",
		in.Username, in.Name, string(hash), now.UnixNano(),
	).Scan(&id)
	if err != nil {
		if isUniqueConstraintError(err) {
			return chat.Account{}, chat.ErrAccountExists
		}
		return chat.Account{}, fmt.Errorf("create account: %w", err)
	}

	return chat.Account{
		ID:        chat.AccountID(id),
		Username:  in.Username,
		Name:      in.Name,
		CreatedAt: fromNanos(now.UnixNano()),
	}, nil
}

// Authenticate checks a username and password. Any mismatch, including an
// unknown username, yields chat.ErrAuthenticationFailed.
func (s *AccountStore) Authenticate(ctx context.Context, username, password string) (chat.AccountID, error) {
	var (
		id   int64
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM accounts WHERE username = ?", username,
	).Scan(&id, &hash)
	if IsNotFoundError(err) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return 0, chat.ErrAuthenticationFailed
	}
	if err != nil {
		return 0, fmt.Errorf("authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return 0, chat.ErrAuthenticationFailed
		}
		return 0, fmt.Errorf("authenticate: %w", err)
	}

	return chat.AccountID(id), nil
}

// Lookup returns an account by id.
func (s *AccountStore) Lookup(ctx context.Context, id chat.AccountID) (chat.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", int64(id))
	return scanAccount(row)
}

// LookupByUsername returns an account by username.
func (s *AccountStore) LookupByUsername(ctx context.Context, username string) (chat.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE username = ?", username)
	return scanAccount(row)
}

// UpdateProfile applies the non-nil fields of upd and returns the result.
func (s *AccountStore) UpdateProfile(ctx context.Context, id chat.AccountID, upd ProfileUpdate) (chat.Account, error) {
	var updated chat.Account
	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		current, err := scanAccount(tx.QueryRowContext(ctx,
			"SELECT "+accountColumns+" FROM accounts WHERE id = ?", int64(id)))
		if err != nil {
			return err
		}

		if upd.Name != nil {
			current.Name = *upd.Name
		}
		if upd.Profile != nil {
			current.Profile = *upd.Profile
		}
		if upd.Bio != nil {
			current.Bio = *upd.Bio
		}
		if upd.Status != nil {
			current.Status = *upd.Status
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE accounts SET name = ?, profile = ?, bio = ?, status = ? WHERE id = ?",
			current.Name, current.Profile, current.Bio, current.Status, int64(id),
		)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}

		updated = current
		return nil
	})
	return updated, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (chat.Account, error) {
	var (
		a         chat.Account
		id        int64
		createdAt int64
	)
	err := row.Scan(&id, &a.Username, &a.Name, &a.Profile, &a.Bio, &a.Status, &createdAt)
	if IsNotFoundError(err) {
		return chat.Account{}, chat.ErrAccountNotFound
	}
	if err != nil {
		return chat.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.ID = chat.AccountID(id)
	a.CreatedAt = fromNanos(createdAt)
	return a, nil
}
