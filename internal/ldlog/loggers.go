// Package ldlog provides the structured logging facade threaded through every long-lived
// component (data store, data source, event processor, big segment manager). It keeps the
// teacher's Loggers shape -- Debug/Info/Warn/Error plus printf variants and per-level enablement
// checks -- backed by zerolog instead of a bespoke no-op logger, so the ambient logging concern
// exercises a real structured-logging library.
package ldlog

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level identifies a logging severity.
type Level int

// Supported levels, ordered least to most severe.
const (
	Debug Level = iota
	Info
	Warn
	Error
	None
)

// Loggers wraps a zerolog.Logger and a minimum-enabled level, exposing the level-named methods
// the rest of the core calls.
type Loggers struct {
	logger   zerolog.Logger
	minLevel Level
}

// NewDefaultLoggers returns a Loggers that writes Info and above to stderr in zerolog's console
// format, which is the library's common default for CLI-adjacent services.
func NewDefaultLoggers() Loggers {
	return NewLoggers(zerolog.ConsoleWriter{Out: os.Stderr}, Info)
}

// NewLoggers constructs a Loggers writing to w, filtering out anything below minLevel.
func NewLoggers(w io.Writer, minLevel Level) Loggers {
	return Loggers{logger: zerolog.New(w).With().Timestamp().Logger(), minLevel: minLevel}
}

// NewDisabledLoggers returns a Loggers that discards everything, for tests that don't want log
// noise.
func NewDisabledLoggers() Loggers {
	return Loggers{logger: zerolog.Nop(), minLevel: None}
}

func (l Loggers) enabled(level Level) bool { return level >= l.minLevel }

// IsDebugEnabled reports whether Debug-level messages will be emitted.
func (l Loggers) IsDebugEnabled() bool { return l.enabled(Debug) }

// Debug logs at debug level.
func (l Loggers) Debug(args ...interface{}) { l.log(Debug, args...) }

// Debugf logs a formatted message at debug level.
func (l Loggers) Debugf(format string, args ...interface{}) { l.logf(Debug, format, args...) }

// Info logs at info level.
func (l Loggers) Info(args ...interface{}) { l.log(Info, args...) }

// Infof logs a formatted message at info level.
func (l Loggers) Infof(format string, args ...interface{}) { l.logf(Info, format, args...) }

// Warn logs at warn level.
func (l Loggers) Warn(args ...interface{}) { l.log(Warn, args...) }

// Warnf logs a formatted message at warn level.
func (l Loggers) Warnf(format string, args ...interface{}) { l.logf(Warn, format, args...) }

// Error logs at error level.
func (l Loggers) Error(args ...interface{}) { l.log(Error, args...) }

// Errorf logs a formatted message at error level.
func (l Loggers) Errorf(format string, args ...interface{}) { l.logf(Error, format, args...) }

func (l Loggers) log(level Level, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	event := l.eventFor(level)
	event.Msg(concat(args...))
}

func (l Loggers) logf(level Level, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.eventFor(level).Msgf(format, args...)
}

func (l Loggers) eventFor(level Level) *zerolog.Event {
	switch level {
	case Debug:
		return l.logger.Debug()
	case Warn:
		return l.logger.Warn()
	case Error:
		return l.logger.Error()
	default:
		return l.logger.Info()
	}
}

func concat(args ...interface{}) string {
	if len(args) == 1 {
		if s, ok := args[0].(string); ok {
			return s
		}
	}
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += toString(a)
	}
	return out
}

func toString(a interface{}) string {
	if s, ok := a.(string); ok {
		return s
	}
	if s, ok := a.(interface{ String() string }); ok {
		return s.String()
	}
	if err, ok := a.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", a)
}
