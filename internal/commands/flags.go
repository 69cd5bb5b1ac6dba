package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/core/pubsub"
	"github.com/colonyops/parley/internal/data/db"
	"github.com/colonyops/parley/internal/parley"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	LogFormat  string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "parley", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "parley")
}

// dbOptions maps the database config section onto open options.
func dbOptions(cfg *config.Config) db.OpenOptions {
	opts := db.OpenOptions{
		Dialect:      db.SQLite,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}
	if cfg.Database.Driver == config.DriverPostgres {
		opts.Dialect = db.Postgres
		opts.DSN = cfg.Database.DSN
	}
	return opts
}

// openDB opens the configured database, applying migrations unless skip is
// set.
func (f *Flags) openDB(skipMigrations bool) (*db.DB, error) {
	if err := os.MkdirAll(f.Config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	opts := dbOptions(f.Config)
	opts.SkipMigrations = skipMigrations

	database, err := db.Open(f.Config.DataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

// openApp builds an App over a fresh database connection for one-shot
// admin commands. The returned closer releases the connection.
func (f *Flags) openApp(_ context.Context) (*parley.App, func(), error) {
	database, err := f.openDB(false)
	if err != nil {
		return nil, func() {}, err
	}

	registry := pubsub.New(f.Config.Stream.QueueSize, f.Config.Stream.Policy())
	app := parley.NewApp(f.Config, database, registry, nil)

	return app, func() {
		registry.Close()
		_ = database.Close()
	}, nil
}
