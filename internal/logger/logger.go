// Package logger configures the process-wide zerolog logger and hands
// out component-scoped sub-loggers, so every package tags its own
// entries without reaching into global state directly.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide base logger, set by Initialize.
var Log zerolog.Logger

// Initialize configures the global logger: level, and either a
// human-readable console writer (development) or plain JSON
// (production).
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "nitram").Logger()
	Log.Info().Str("level", logLevel.String()).Bool("pretty", pretty).Msg("logger initialized")
}

// Engine scopes log entries to the dispatch engine (routing, handler
// invocation, build-time registration).
func Engine() *zerolog.Logger {
	l := Log.With().Str("component", "engine").Logger()
	return &l
}

// Conn scopes log entries to one connection's lifecycle loops.
func Conn() *zerolog.Logger {
	l := Log.With().Str("component", "conn").Logger()
	return &l
}

// Auth scopes log entries to token generation/parsing and the
// authentication handshake.
func Auth() *zerolog.Logger {
	l := Log.With().Str("component", "auth").Logger()
	return &l
}

// Janitor scopes log entries to the periodic session sweep.
func Janitor() *zerolog.Logger {
	l := Log.With().Str("component", "janitor").Logger()
	return &l
}
