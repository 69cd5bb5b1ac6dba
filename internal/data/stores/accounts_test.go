package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/parley/internal/core/chat"
)

func TestAccountStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "alice")
		assert.NotZero(t, a.ID)

		got, err := f.accounts.Lookup(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, a.CreatedAt, got.CreatedAt)

		byName, err := f.accounts.LookupByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, a.ID, byName.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		f := newFixture(t)
		f.account(t, "alice")

		_, err := f.accounts.Create(ctx, NewAccount{Username: "alice", Name: "Other", Password: "password2"})
		require.ErrorIs(t, err, chat.ErrAccountExists)
	})

	t.Run("authenticate", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "alice")

		id, err := f.accounts.Authenticate(ctx, "alice", "password1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, id)

		_, err = f.accounts.Authenticate(ctx, "alice", "wrong")
		require.ErrorIs(t, err, chat.ErrAuthenticationFailed)

		_, err = f.accounts.Authenticate(ctx, "nobody", "password1")
		require.ErrorIs(t, err, chat.ErrAuthenticationFailed)
	})

	t.Run("lookup missing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.accounts.Lookup(ctx, 404)
		require.ErrorIs(t, err, chat.ErrAccountNotFound)
	})

	t.Run("update profile", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "alice")

		bio := "gopher"
		status := "away"
		got, err := f.accounts.UpdateProfile(ctx, a.ID, ProfileUpdate{Bio: &bio, Status: &status})
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name, "unset fields unchanged")
		assert.Equal(t, "gopher", got.Bio)
		assert.Equal(t, "away", got.Status)

		reread, err := f.accounts.Lookup(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, got, reread)

		_, err = f.accounts.UpdateProfile(ctx, 404, ProfileUpdate{Bio: &bio})
		require.ErrorIs(t, err, chat.ErrAccountNotFound)
	})
}
