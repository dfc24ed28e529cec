// Package logger provides the process-wide structured logger. It wraps
// zerolog behind the same Init/Get/Info/Warn/Error/Debug surface the rest
// of the codebase is written against, so call sites never touch zerolog
// directly.
package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger with a JSON handler writing to
// os.Stdout. It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		defaultLogger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.DebugLevel)
		defaultLogger.Info().Msg("logger initialized")
	})
}

// Get returns the initialized default logger. It calls Init() to ensure
// the logger is ready before returning it.
func Get() *zerolog.Logger {
	Init()
	return &defaultLogger
}

// withFields turns a flat key,value,key,value... slice into zerolog
// fields, matching the (source, host, error_kind, duration_ms) tuples used
// across collectors and backends.
func withFields(e *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	return e
}

// Info logs an informational message using the default logger.
func Info(msg string, args ...any) {
	withFields(Get().Info(), args).Msg(msg)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	withFields(Get().Warn(), args).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	ev := Get().Error()
	if err != nil {
		ev = ev.Err(err)
	}
	withFields(ev, args).Msg(msg)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	withFields(Get().Debug(), args).Msg(msg)
}
