package parley

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/core/pubsub"
	"github.com/colonyops/parley/internal/data/db"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	database, err := db.Open(cfg.DataDir, db.DefaultOpenOptions())
	require.NoError(t, err, "Open")

	registry := pubsub.New(cfg.Stream.QueueSize, cfg.Stream.Policy())
	t.Cleanup(func() {
		registry.Close()
		_ = database.Close()
	})

	return NewApp(&cfg, database, registry, nil, WithHashCost(bcrypt.MinCost))
}

func register(t *testing.T, app *App, username string) chat.Account {
	t.Helper()
	acct, err := app.Accounts.Register(context.Background(), username, username, "password1")
	require.NoError(t, err)
	return acct
}

func createRoom(t *testing.T, app *App, name string, owner chat.AccountID) chat.Room {
	t.Helper()
	room, err := app.Rooms.Create(context.Background(), CreateInput{Name: name, Owner: owner})
	require.NoError(t, err)
	return room
}
