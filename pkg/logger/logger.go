// Package logger provides a zerolog-based structured logger shared by every
// component in the module.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the root logger is constructed.
type Config struct {
	Level  string
	Pretty bool
}

// New builds a root zerolog.Logger from cfg and sets the process-wide global
// level so that library code logging through zerolog.Ctx picks it up too.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var writer zerolog.ConsoleWriter
	if cfg.Pretty {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		return zerolog.New(writer).With().Timestamp().Caller().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetGlobalLogger installs l as the package-level zerolog default logger,
// used by any dependency that logs through zerolog.DefaultContextLogger.
func SetGlobalLogger(l zerolog.Logger) {
	zerolog.DefaultContextLogger = &l
	log := l
	_ = log
}
