// Package logging provides structured JSON logging for ai-barometer,
// with a small set of context-carried attributes (repo, commit,
// component) attached to every line automatically.
//
// Usage:
//
//	if err := logging.Init(home); err != nil {
//	    // fall through; Init never returns a hard failure in practice
//	}
//	defer logging.Close()
//
//	ctx = logging.WithRepo(ctx, repoRoot)
//	ctx = logging.WithComponent(ctx, "hookpipeline")
//	logging.Info(ctx, "note attached", slog.String("commit", hash))
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevelEnvVar controls the minimum log level when set.
const LogLevelEnvVar = "AI_BAROMETER_LOG_LEVEL"

// LogsDirName is the directory under $HOME/.ai-barometer where daily
// log files are written.
const LogsDirName = "logs"

var (
	logger       *slog.Logger
	logFile      *os.File
	logBufWriter *bufio.Writer
	mu           sync.RWMutex
)

// Init opens today's log file under $HOME/.ai-barometer/logs and
// installs it as the package logger. If the directory or file cannot
// be created, logging falls back to stderr; this is never treated as
// a fatal error by callers, since logging must never block a commit.
func Init(home string) error {
	mu.Lock()
	defer mu.Unlock()

	flushLocked()

	level := parseLogLevel(os.Getenv(LogLevelEnvVar))

	logsPath := filepath.Join(home, ".ai-barometer", LogsDirName)
	if err := os.MkdirAll(logsPath, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil //nolint:nilerr // logging failures must not propagate
	}

	name := time.Now().UTC().Format("2006-01-02") + ".log"
	f, err := os.OpenFile(filepath.Join(logsPath, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil //nolint:nilerr // logging failures must not propagate
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)
	return nil
}

// Close flushes and closes the current log file, if any. Safe to call
// multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	flushLocked()
}

func flushLocked() {
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Logger returns the package's current file-backed logger for
// components that take a *slog.Logger instead of calling the
// package-level Debug/Info/Warn/Error functions directly, so every
// log line shares the same destination, level, and JSON formatting
// regardless of which entry point produced it. Falls back to
// slog.Default() if Init has not run yet.
func Logger() *slog.Logger {
	return getLogger()
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey int

const (
	repoKey ctxKey = iota
	commitKey
	componentKey
)

// WithRepo attaches a repository root to ctx for automatic inclusion
// in subsequent log lines.
func WithRepo(ctx context.Context, repoRoot string) context.Context {
	return context.WithValue(ctx, repoKey, repoRoot)
}

// WithCommit attaches a commit hash to ctx.
func WithCommit(ctx context.Context, hash string) context.Context {
	return context.WithValue(ctx, commitKey, hash)
}

// WithComponent attaches the name of the acting component to ctx.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

func attrsFromContext(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var attrs []any
	if v, ok := ctx.Value(repoKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("repo", v))
	}
	if v, ok := ctx.Value(commitKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("commit", v))
	}
	if v, ok := ctx.Value(componentKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("component", v))
	}
	return attrs
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	all := append(attrsFromContext(ctx), attrs...)
	getLogger().Log(context.Background(), level, msg, all...)
}

// Debug logs at DEBUG level with context attributes extracted.
func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }

// Info logs at INFO level with context attributes extracted.
func Info(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelInfo, msg, attrs...) }

// Warn logs at WARN level with context attributes extracted.
func Warn(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelWarn, msg, attrs...) }

// Error logs at ERROR level with context attributes extracted.
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

// LogDuration logs msg at level with a duration_ms attribute computed
// from start, intended for use with defer.
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	all := make([]any, 0, len(attrs)+1)
	all = append(all, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	all = append(all, attrs...)
	log(ctx, level, msg, all...)
}

// Fprintf writes a user-visible diagnostic line prefixed per spec, to
// w (typically os.Stderr). This is distinct from the structured log:
// it is the operator-facing surface, not the debugging surface.
func Fprintf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[ai-barometer] "+format, args...)
}
