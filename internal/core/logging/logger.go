package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component creates a child of the global logger tagged with "cmp".
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}

// Install attaches ContextHook to the global logger. Called once after the
// global logger is configured.
func Install() {
	log.Logger = log.Logger.Hook(ContextHook{})
}
