package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestMigrateUp_FreshDB(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	// Verify schema_migrations has all versions recorded.
	rows, err := database.Conn().QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var versions []int
	for rows.Next() {
		var v int
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())

	migrations, err := loadMigrations(SQLite)
	require.NoError(t, err)

	require.Len(t, versions, len(migrations))
	for i, m := range migrations {
		assert.Equal(t, m.Version, versions[i])
	}

	for _, table := range []string{"accounts", "rooms", "memberships", "messages"} {
		_, err = database.Conn().ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0")
		require.NoError(t, err, "%s table should exist", table)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	database := openTestDB(t)

	err := database.MigrateUp(context.Background())
	assert.NoError(t, err, "second MigrateUp should be idempotent")
}

func TestOpen_SkipMigrations(t *testing.T) {
	opts := DefaultOpenOptions()
	opts.SkipMigrations = true

	database, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()

	states, err := database.MigrationStatus(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, states)
	for _, st := range states {
		assert.False(t, st.Applied, "migration %d should be pending", st.Version)
	}

	require.NoError(t, database.MigrateUp(context.Background()))

	states, err = database.MigrationStatus(context.Background())
	require.NoError(t, err)
	for _, st := range states {
		assert.True(t, st.Applied, "migration %d should be applied", st.Version)
		assert.False(t, st.AppliedAt.IsZero())
	}
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	conn := database.Conn()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO accounts (username, name, password_hash, created_at)
		VALUES ('alice', 'Alice', 'x', 1)
	`)
	require.NoError(t, err)

	// Revert the last migration (messages).
	err = database.MigrateDown(ctx, 1)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, "SELECT 1 FROM messages LIMIT 0")
	require.Error(t, err, "messages should not exist after down migration")

	var count int
	err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "account row should be preserved")

	require.NoError(t, database.MigrateUp(ctx))
	_, err = conn.ExecContext(ctx, "SELECT 1 FROM messages LIMIT 0")
	require.NoError(t, err, "messages should be restored")
}

func TestMigrateDown_InvalidN(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.Error(t, database.MigrateDown(ctx, 0), "n=0 should fail")
	require.Error(t, database.MigrateDown(ctx, -1), "n=-1 should fail")
}

func TestMigrateDown_TooMany(t *testing.T) {
	database := openTestDB(t)

	migrations, err := loadMigrations(SQLite)
	require.NoError(t, err)

	err = database.MigrateDown(context.Background(), len(migrations)+1)
	assert.Error(t, err, "requesting more down migrations than applied should fail")
}

func TestLoadMigrations_Valid(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		t.Run(string(d), func(t *testing.T) {
			migrations, err := loadMigrations(d)
			require.NoError(t, err)
			require.NotEmpty(t, migrations)

			for i := 1; i < len(migrations); i++ {
				assert.Greater(t, migrations[i].Version, migrations[i-1].Version,
					"migrations should be in ascending version order")
			}

			for _, m := range migrations {
				assert.NotEmpty(t, m.UpSQL, "migration %d up SQL should not be empty", m.Version)
				assert.NotEmpty(t, m.DownSQL, "migration %d down SQL should not be empty", m.Version)
				assert.NotEmpty(t, m.Name, "migration %d name should not be empty", m.Version)
			}
		})
	}

	sqlite, err := loadMigrations(SQLite)
	require.NoError(t, err)
	postgres, err := loadMigrations(Postgres)
	require.NoError(t, err)
	require.Len(t, postgres, len(sqlite), "dialects must carry the same migrations")
	for i := range sqlite {
		assert.Equal(t, sqlite[i].Version, postgres[i].Version)
		assert.Equal(t, sqlite[i].Name, postgres[i].Name)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename      string
		wantVersion   int
		wantName      string
		wantDirection string
		wantErr       bool
	}{
		{"0001_initial.up.sql", 1, "initial", "up", false},
		{"0001_initial.down.sql", 1, "initial", "down", false},
		{"0002_messages.up.sql", 2, "messages", "up", false},
		{"0100_big_version.down.sql", 100, "big_version", "down", false},
		{"bad.sql", 0, "", "", true},
		{"0001_initial.sql", 0, "", "", true},
		{"0000_zero.up.sql", 0, "", "", true},
		{"-1_negative.up.sql", 0, "", "", true},
		{"abc_notnumber.up.sql", 0, "", "", true},
		{"0001_.up.sql", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, direction, err := parseFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDirection, direction)
		})
	}
}
