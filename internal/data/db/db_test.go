package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{SQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{Postgres, "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{Postgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, rebind(tt.dialect, tt.in))
	}
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open(t.TempDir(), OpenOptions{Dialect: "mysql"})
	assert.Error(t, err)

	_, err = Open(t.TempDir(), OpenOptions{Dialect: Postgres})
	assert.Error(t, err, "postgres without a dsn")
}

func TestWithTx(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	insert := func(tx *Tx, name string) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO accounts (username, name, password_hash, created_at) VALUES (?, ?, 'x', 1)",
			name, name,
		)
		return err
	}

	require.NoError(t, database.WithTx(ctx, func(tx *Tx) error {
		return insert(tx, "kept")
	}))

	boom := errors.New("boom")
	err := database.WithTx(ctx, func(tx *Tx) error {
		require.NoError(t, insert(tx, "rolled"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, database.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestForeignKeysEnforced(t *testing.T) {
	database := openTestDB(t)

	_, err := database.ExecContext(context.Background(),
		"INSERT INTO memberships (room_id, account_id, joined_at) VALUES (?, ?, ?)", 99, 99, 1)
	assert.Error(t, err)
}
