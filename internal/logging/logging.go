// Package logging provides the server's structured logger: a thin
// interface over logrus with the same Log(level, message, keyvals...)
// call shape the kgo client uses for its own Logger, so every package
// here logs the same way regardless of what's underneath.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors kgo's LogLevel enum: ordered, zero value disables logging.
type Level int8

const (
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "none"
	}
}

// Logger is the logging surface every package in this module depends on.
type Logger interface {
	Level() Level
	Log(level Level, msg string, keyvals ...any)
}

// logrusLogger adapts a *logrus.Logger to Logger, fanning keyvals out to
// logrus's structured fields.
type logrusLogger struct {
	level Level
	entry *logrus.Logger
}

// New returns a Logger backed by logrus, writing JSON lines to stderr at
// or below level.
func New(level Level) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(toLogrusLevel(level))
	return &logrusLogger{level: level, entry: l}
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelInfo:
		return logrus.InfoLevel
	case LevelDebug:
		return logrus.DebugLevel
	default:
		return logrus.PanicLevel
	}
}

func (l *logrusLogger) Level() Level { return l.level }

func (l *logrusLogger) Log(level Level, msg string, keyvals ...any) {
	fields := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fields[key] = keyvals[i+1]
	}

	entry := l.entry.WithFields(fields)
	switch level {
	case LevelError:
		entry.Error(msg)
	case LevelWarn:
		entry.Warn(msg)
	case LevelInfo:
		entry.Info(msg)
	case LevelDebug:
		entry.Debug(msg)
	}
}

// Nop discards everything, for tests that don't care about log output.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Level() Level                        { return LevelNone }
func (nopLogger) Log(Level, string, ...any) {}
