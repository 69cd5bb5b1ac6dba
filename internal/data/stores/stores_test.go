package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/db"
)

type fixture struct {
	db       *db.DB
	accounts *AccountStore
	rooms    *RoomStore
	messages *MessageStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err, "Open")
	t.Cleanup(func() { _ = database.Close() })

	return fixture{
		db:       database,
		accounts: NewAccountStore(database, bcrypt.MinCost),
		rooms:    NewRoomStore(database),
		messages: NewMessageStore(database),
	}
}

func (f fixture) account(t *testing.T, username string) chat.Account {
	t.Helper()
	a, err := f.accounts.Create(context.Background(), NewAccount{
		Username: username,
		Name:     username,
		Password: "password1",
	})
	require.NoError(t, err)
	return a
}

func (f fixture) room(t *testing.T, name string, owner chat.AccountID) chat.Room {
	t.Helper()
	r, err := f.rooms.Create(context.Background(), NewRoom{Name: name, Title: name, OwnerID: owner})
	require.NoError(t, err)
	return r
}
