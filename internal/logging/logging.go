// Package logging builds the zerolog loggers used by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLevel applies when no level is configured.
const DefaultLevel = zerolog.WarnLevel

// EnvLevel names the environment variable read by FromEnv.
const EnvLevel = "DREAMFFI_LOG_LEVEL"

// Config selects a logger's level and output.
type Config struct {
	Level   string    // zerolog level name; empty means DefaultLevel
	Out     io.Writer // defaults to os.Stderr
	Console bool      // human-readable output instead of JSON
}

// ParseLevel accepts zerolog level names in any case. Empty returns
// DefaultLevel.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return DefaultLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// New returns a logger for cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("app", "dreamffi").
		Logger(), nil
}

// FromEnv returns a JSON logger on stderr at the level named by EnvLevel.
// An invalid level falls back to DefaultLevel.
func FromEnv() zerolog.Logger {
	log, err := New(Config{Level: os.Getenv(EnvLevel)})
	if err != nil {
		log, _ = New(Config{})
	}
	return log
}
