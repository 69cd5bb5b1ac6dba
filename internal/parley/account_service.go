package parley

import (
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/stores"
)

// AccountService manages registration and profiles.
type AccountService struct {
	store *stores.AccountStore
}

func NewAccountService(store *stores.AccountStore) *AccountService {
	return &AccountService{store: store}
}

// Register validates and creates a new account.
func (s *AccountService) Register(ctx context.Context, username, name, password string) (chat.Account, error) {
	if strings.TrimSpace(name) == "" {
		name = username
	}
	if err := chat.ValidateRegistration(username, name, password); err != nil {
		return chat.Account{}, err
	}

	acct, err := s.store.Create(ctx, stores.NewAccount{
		Username: username,
		Name:     name,
		Password: password,
	})
	if err != nil {
		return chat.Account{}, storeErr("create account", err)
	}
	return acct, nil
}

// Authenticate checks credentials and returns the matching account.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (chat.Account, error) {
	id, err := s.store.Authenticate(ctx, username, password)
	if err != nil {
		return chat.Account{}, storeErr("authenticate", err)
	}
	return s.Get(ctx, id)
}

func (s *AccountService) Get(ctx context.Context, id chat.AccountID) (chat.Account, error) {
	acct, err := s.store.Lookup(ctx, id)
	if err != nil {
		return chat.Account{}, storeErr("lookup account", err)
	}
	return acct, nil
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (chat.Account, error) {
	acct, err := s.store.LookupByUsername(ctx, username)
	if err != nil {
		return chat.Account{}, storeErr("lookup account", err)
	}
	return acct, nil
}

// UpdateProfile applies the non-nil fields of upd.
func (s *AccountService) UpdateProfile(ctx context.Context, id chat.AccountID, upd stores.ProfileUpdate) (chat.Account, error) {
	var errs criterio.FieldErrorsBuilder
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		errs = errs.Append("name", fmt.Errorf("cannot be empty"))
	}
	if upd.Status != nil && len(*upd.Status) > 140 {
		errs = errs.Append("status", fmt.Errorf("must be at most 140 bytes"))
	}
	if err := errs.ToError(); err != nil {
		return chat.Account{}, chat.Invalid(err)
	}

	acct, err := s.store.UpdateProfile(ctx, id, upd)
	if err != nil {
		return chat.Account{}, storeErr("update profile", err)
	}
	return acct, nil
}
