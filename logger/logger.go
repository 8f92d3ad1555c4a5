// Package logger configures the zerolog.Logger shared across every
// gatewatch component.
package logger

import (
	"os"

	"github.com/gatewatch/gatewatch/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger: pretty console output in
// development, structured JSON at or above info level in production.
func New(cfg *config.Config) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if cfg.IsDevelopment() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.IsDevelopment() {
		out := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
