// Package userrecords provides default logging implementations.
package userrecords

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// LogLevel defines the various log levels.
// These correspond to slog's levels.
type LogLevel int

// Log level constants, mirroring slog levels for internal mapping.
const (
	LogLevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LogLevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LogLevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LogLevelError LogLevel = LogLevel(slog.LevelError)
)

// ParseLogLevel maps "debug", "info", "warn" and "error" to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return LogLevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidInput, s)
	}
	return LogLevel(l), nil
}

// LevelLogger is a Logger whose level can be changed at runtime.
type LevelLogger interface {
	Logger
	SetLevel(level LogLevel)
}

// defaultSlogLogger is an implementation of the Logger interface using the slog package.
type defaultSlogLogger struct {
	slogger  *slog.Logger
	levelVar *slog.LevelVar
}

// NewDefaultLogger initializes a new defaultSlogLogger instance.
// It defaults to a JSON handler writing to os.Stderr with slog.LevelInfo.
// The log level can be changed dynamically via the SetLevel method.
func NewDefaultLogger() LevelLogger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
	}
	return &defaultSlogLogger{
		slogger:  slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)),
		levelVar: levelVar,
	}
}

// Debug logs a debug-level message.
func (l *defaultSlogLogger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs an info-level message.
func (l *defaultSlogLogger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs a warning-level message.
func (l *defaultSlogLogger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs an error-level message.
func (l *defaultSlogLogger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// SetLevel changes the logging level of the defaultSlogLogger dynamically.
func (l *defaultSlogLogger) SetLevel(level LogLevel) {
	if l.levelVar != nil {
		l.levelVar.Set(slog.Level(level))
	}
}

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps zl. Odd trailing args are logged under the key "!BADKEY", like slog does.
func NewZerologLogger(zl zerolog.Logger) LevelLogger {
	return &zerologLogger{zl: zl}
}

func (l *zerologLogger) Debug(msg string, args ...any) { l.write(l.zl.Debug(), msg, args) }
func (l *zerologLogger) Info(msg string, args ...any)  { l.write(l.zl.Info(), msg, args) }
func (l *zerologLogger) Warn(msg string, args ...any)  { l.write(l.zl.Warn(), msg, args) }
func (l *zerologLogger) Error(msg string, args ...any) { l.write(l.zl.Error(), msg, args) }

// SetLevel maps the slog-style level onto zerolog.
func (l *zerologLogger) SetLevel(level LogLevel) {
	var zl zerolog.Level
	switch {
	case level <= LogLevelDebug:
		zl = zerolog.DebugLevel
	case level <= LogLevelInfo:
		zl = zerolog.InfoLevel
	case level <= LogLevelWarn:
		zl = zerolog.WarnLevel
	default:
		zl = zerolog.ErrorLevel
	}
	l.zl = l.zl.Level(zl)
}

func (l *zerologLogger) write(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			ev = ev.Interface("!BADKEY", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if err, isErr := args[i+1].(error); isErr {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
