// Package config handles configuration loading and validation for parley.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/parley/internal/core/pubsub"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Stream   StreamConfig   `yaml:"stream"`
	Messages MessagesConfig `yaml:"messages"`
	Media    MediaConfig    `yaml:"media"`
	Redis    RedisConfig    `yaml:"redis"`
	Profiler ProfilerConfig `yaml:"profiler"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // per websocket frame
	// AllowedOrigins are glob patterns matched against the websocket Origin
	// header. Empty means same-host only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects and tunes the SQL backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite or postgres
	DSN          string `yaml:"dsn"`    // postgres connection string; unused for sqlite
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	BusyTimeout  int    `yaml:"busy_timeout"` // sqlite busy timeout in milliseconds
}

// StreamConfig tunes live delivery.
type StreamConfig struct {
	QueueSize      int           `yaml:"queue_size"`
	OverflowPolicy string        `yaml:"overflow_policy"` // drop-oldest or drop-newest
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// MessagesConfig bounds message content and history.
type MessagesConfig struct {
	MaxContentSize int           `yaml:"max_content_size"`
	HistoryDefault int           `yaml:"history_default"`
	HistoryMax     int           `yaml:"history_max"`
	Retention      time.Duration `yaml:"retention"` // 0 keeps messages forever
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

// MediaConfig controls uploaded media.
type MediaConfig struct {
	Dir     string `yaml:"dir"` // defaults to <data_dir>/media
	MaxSize int64  `yaml:"max_size"`
}

// RedisConfig enables the cross-node relay.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// ProfilerConfig enables the pprof and diagnostics listener.
type ProfilerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			MaxOpenConns: 4,
			MaxIdleConns: 4,
			BusyTimeout:  5000,
		},
		Stream: StreamConfig{
			QueueSize:      pubsub.DefaultQueueSize,
			OverflowPolicy: string(pubsub.DropOldest),
			PingInterval:   30 * time.Second,
		},
		Messages: MessagesConfig{
			MaxContentSize: 64 << 10,
			HistoryDefault: 40,
			HistoryMax:     200,
			SweepInterval:  time.Hour,
		},
		Media: MediaConfig{
			MaxSize: 10 << 20,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			ChannelPrefix: "parley:",
		},
		Profiler: ProfilerConfig{
			Port: 6060,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}

	if c.Database.Driver == "" {
		c.Database.Driver = defaults.Database.Driver
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}

	if c.Stream.QueueSize == 0 {
		c.Stream.QueueSize = defaults.Stream.QueueSize
	}
	if c.Stream.OverflowPolicy == "" {
		c.Stream.OverflowPolicy = defaults.Stream.OverflowPolicy
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = defaults.Stream.PingInterval
	}

	if c.Messages.MaxContentSize == 0 {
		c.Messages.MaxContentSize = defaults.Messages.MaxContentSize
	}
	if c.Messages.HistoryDefault == 0 {
		c.Messages.HistoryDefault = defaults.Messages.HistoryDefault
	}
	if c.Messages.HistoryMax == 0 {
		c.Messages.HistoryMax = defaults.Messages.HistoryMax
	}
	if c.Messages.SweepInterval == 0 {
		c.Messages.SweepInterval = defaults.Messages.SweepInterval
	}

	if c.Media.MaxSize == 0 {
		c.Media.MaxSize = defaults.Media.MaxSize
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = defaults.Redis.Addr
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = defaults.Redis.ChannelPrefix
	}

	if c.Profiler.Port == 0 {
		c.Profiler.Port = defaults.Profiler.Port
	}
}

// Policy returns the parsed stream overflow policy. Validate
// guarantees the configured value parses.
func (s StreamConfig) Policy() pubsub.OverflowPolicy {
	p, err := pubsub.ParseOverflowPolicy(s.OverflowPolicy)
	if err != nil {
		return pubsub.DropOldest
	}
	return p
}

// DBPath returns the sqlite database file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "parley.db")
}

// MediaDir returns the directory uploaded media is stored in.
func (c *Config) MediaDir() string {
	if c.Media.Dir != "" {
		return c.Media.Dir
	}
	return filepath.Join(c.DataDir, "media")
}
