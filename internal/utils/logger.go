package utils

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type Logger struct {
	level LogLevel
	entry *logrus.Entry
}

// NewLogger writes to stderr so stdout stays free for the coverage view.
// runID is attached to every line as the "run" field when non-empty.
func NewLogger(level string, runID string) *Logger {
	logLevel := parseLogLevel(level)

	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetLevel(toLogrusLevel(logLevel))

	entry := logrus.NewEntry(base)
	if runID != "" {
		entry = entry.WithField("run", runID)
	}

	return &Logger{level: logLevel, entry: entry}
}

func NewDiscardLogger() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)

	return &Logger{level: LevelInfo, entry: logrus.NewEntry(base)}
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *Logger) Level() LogLevel {
	return l.level
}

// WithField returns a child logger that adds key=value to every line.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{level: l.level, entry: l.entry.WithField(key, value)}
}

func (l *Logger) Info(format string, v ...any) {
	l.entry.Infof(format, v...)
}

func (l *Logger) Warn(format string, v ...any) {
	l.entry.Warnf(format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	l.entry.Errorf(format, v...)
}

func (l *Logger) Debug(format string, v ...any) {
	l.entry.Debugf(format, v...)
}

