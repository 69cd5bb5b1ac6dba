package config

import (
	"fmt"
	"net"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"

	"github.com/colonyops/parley/internal/core/pubsub"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = errs.Append("server.addr", fmt.Errorf("invalid listen address %q: %w", c.Server.Addr, err))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = errs.Append("server.shutdown_timeout", fmt.Errorf("cannot be negative"))
	}
	if c.Server.WriteTimeout < 0 {
		errs = errs.Append("server.write_timeout", fmt.Errorf("cannot be negative"))
	}
	for i, pattern := range c.Server.AllowedOrigins {
		if !doublestar.ValidatePattern(pattern) {
			errs = errs.Append(fmt.Sprintf("server.allowed_origins[%d]", i), fmt.Errorf("invalid glob %q", pattern))
		}
	}

	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = errs.Append("database.dsn", fmt.Errorf("required for the postgres driver"))
		}
	default:
		errs = errs.Append("database.driver", fmt.Errorf("must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}
	if c.Database.MaxOpenConns < 1 {
		errs = errs.Append("database.max_open_conns", fmt.Errorf("must be at least 1"))
	}
	if c.Database.MaxIdleConns < 0 {
		errs = errs.Append("database.max_idle_conns", fmt.Errorf("cannot be negative"))
	}
	if c.Database.BusyTimeout < 0 {
		errs = errs.Append("database.busy_timeout", fmt.Errorf("cannot be negative"))
	}

	if c.Stream.QueueSize < 1 {
		errs = errs.Append("stream.queue_size", fmt.Errorf("must be at least 1"))
	}
	if _, err := pubsub.ParseOverflowPolicy(c.Stream.OverflowPolicy); err != nil {
		errs = errs.Append("stream.overflow_policy", err)
	}
	if c.Stream.PingInterval < 0 {
		errs = errs.Append("stream.ping_interval", fmt.Errorf("cannot be negative"))
	}

	if c.Messages.MaxContentSize < 1 {
		errs = errs.Append("messages.max_content_size", fmt.Errorf("must be at least 1"))
	}
	if c.Messages.HistoryMax < 1 {
		errs = errs.Append("messages.history_max", fmt.Errorf("must be at least 1"))
	}
	if c.Messages.HistoryDefault < 1 || c.Messages.HistoryDefault > c.Messages.HistoryMax {
		errs = errs.Append("messages.history_default", fmt.Errorf("must be between 1 and history_max (%d)", c.Messages.HistoryMax))
	}
	if c.Messages.Retention < 0 {
		errs = errs.Append("messages.retention", fmt.Errorf("cannot be negative"))
	}
	if c.Messages.SweepInterval <= 0 {
		errs = errs.Append("messages.sweep_interval", fmt.Errorf("must be positive"))
	}

	if c.Media.MaxSize < 1 {
		errs = errs.Append("media.max_size", fmt.Errorf("must be at least 1"))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = errs.Append("redis.addr", fmt.Errorf("required when redis is enabled"))
	}

	if c.Profiler.Enabled && (c.Profiler.Port < 1 || c.Profiler.Port > 65535) {
		errs = errs.Append("profiler.port", fmt.Errorf("must be a valid TCP port"))
	}

	return errs.ToError()
}

// ValidateDeep performs Validate plus filesystem checks for the config
// file, data directory and media directory.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("media.dir", c.MediaDir(), isDirectoryOrNotExist),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Messages.Retention > 0 && c.Messages.SweepInterval > c.Messages.Retention {
		warnings = append(warnings, ValidationWarning{
			Category: "Messages",
			Item:     "sweep_interval",
			Message:  "sweep runs less often than the retention window; messages may outlive it",
		})
	}

	if c.Database.Driver == DriverSQLite && c.Redis.Enabled {
		warnings = append(warnings, ValidationWarning{
			Category: "Redis",
			Item:     "enabled",
			Message:  "relay enabled with a node-local sqlite database; other nodes will not see history",
		})
	}

	if c.Database.Driver == DriverSQLite && c.Database.DSN != "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Database",
			Item:     "dsn",
			Message:  "dsn is ignored by the sqlite driver",
		})
	}

	for i, pattern := range c.Server.AllowedOrigins {
		if pattern == "*" || pattern == "**" {
			warnings = append(warnings, ValidationWarning{
				Category: "Server",
				Item:     fmt.Sprintf("allowed_origins[%d]", i),
				Message:  "any origin may open websocket streams",
			})
		}
	}

	return warnings
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
