// Package logger provides leveled structured logging.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) slog() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging.
type Logger struct {
	level  Level
	format string
	logger *slog.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
	output        io.Writer = os.Stderr
)

// Init initializes the default logger with the specified level and format.
// Format is "json" or "text".
func Init(level string, format string) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = build(ParseLevel(level), format, output)
}

// SetOutput redirects the default logger, keeping its level and format.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	if defaultLogger != nil {
		defaultLogger = build(defaultLogger.level, defaultLogger.format, w)
	}
}

// With returns a slog.Logger carrying attrs, for callers that want
// structured fields instead of printf formatting.
func With(args ...any) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return defaultLogger.logger.With(args...)
}

func build(l Level, format string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: l.slog()}
	var h slog.Handler
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{level: l, format: format, logger: slog.New(h)}
}

func logf(l Level, format string, args ...interface{}) {
	mu.RLock()
	lg := defaultLogger
	mu.RUnlock()
	if lg == nil || lg.level > l {
		return
	}
	lg.logger.Log(context.Background(), l.slog(), fmt.Sprintf(format, args...))
}

func Debug(format string, args ...interface{}) { logf(DebugLevel, format, args...) }

func Info(format string, args ...interface{}) { logf(InfoLevel, format, args...) }

func Warn(format string, args ...interface{}) { logf(WarnLevel, format, args...) }

func Error(format string, args ...interface{}) { logf(ErrorLevel, format, args...) }

func Fatal(format string, args ...interface{}) {
	mu.RLock()
	lg := defaultLogger
	mu.RUnlock()
	if lg != nil {
		lg.logger.Error("FATAL: " + fmt.Sprintf(format, args...))
	}
	os.Exit(1)
}
