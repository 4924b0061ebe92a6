package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats supported by the logger
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Logger provides structured logging with persistent context attributes.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	closer io.Closer // nil when writing to stderr
	mu     sync.Mutex
	attrs  []slog.Attr
}

// New creates a Logger that writes JSON-formatted logs to the given file
// path, creating parent directories as needed. If path is empty, logs go to
// stderr.
//
// The level parameter controls which messages are logged:
//   - DEBUG: all messages
//   - INFO: info, warn, and error messages
//   - WARN: warn and error messages
//   - ERROR: only error messages
func New(path string, level string) (*Logger, error) {
	writer, closer, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	return newLogger(writer, closer, level, FormatJSON), nil
}

// NewWithRotation creates a Logger backed by a RotatingWriter, so the log
// file is rotated once it exceeds the configured size.
func NewWithRotation(path string, level string, config RotationConfig) (*Logger, error) {
	if path == "" {
		return New("", level)
	}
	rw, err := NewRotatingWriter(path, config)
	if err != nil {
		return nil, err
	}
	return newLogger(rw, rw, level, FormatJSON), nil
}

// Options configures a Logger created with NewWithOptions.
type Options struct {
	// Path is the log destination. Empty means stderr.
	Path string

	// Level is the minimum level to log.
	Level string

	// Format selects the output encoding, FormatJSON or FormatText.
	// Empty defaults to FormatJSON.
	Format string

	// Rotation enables size-based rotation when Path is set and
	// Rotation.MaxSizeMB is positive.
	Rotation RotationConfig
}

// NewWithOptions creates a Logger from the combined path, level, format and
// rotation settings.
func NewWithOptions(opts Options) (*Logger, error) {
	if opts.Path != "" && opts.Rotation.MaxSizeMB > 0 {
		rw, err := NewRotatingWriter(opts.Path, opts.Rotation)
		if err != nil {
			return nil, err
		}
		return newLogger(rw, rw, opts.Level, opts.Format), nil
	}

	writer, closer, err := openLogFile(opts.Path)
	if err != nil {
		return nil, err
	}
	return newLogger(writer, closer, opts.Level, opts.Format), nil
}

// openLogFile opens path for appending, creating parent directories as
// needed. An empty path selects stderr with a nil closer.
func openLogFile(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, file, nil
}

func newLogger(w io.Writer, c io.Closer, level string, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, FormatText) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		closer: c,
		attrs:  make([]slog.Attr, 0),
	}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithSupervisor returns a new Logger with the supervisor run ID added to
// all log entries. This creates a child logger that inherits all existing
// attributes.
func (l *Logger) WithSupervisor(runID string) *Logger {
	return l.withAttr(slog.String("supervisor_id", runID))
}

// WithWorker returns a new Logger with the worker ID added to all log
// entries. This creates a child logger that inherits all existing
// attributes.
func (l *Logger) WithWorker(workerID string) *Logger {
	return l.withAttr(slog.String("worker_id", workerID))
}

// WithComponent returns a new Logger with the component name added to all
// log entries. Components include "registry", "health", "scaling",
// "restart", "admin", and similar subsystem names.
func (l *Logger) WithComponent(name string) *Logger {
	return l.withAttr(slog.String("component", name))
}

// With returns a new Logger with arbitrary key-value attributes.
// Keys and values are provided as alternating arguments.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	newAttrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	newAttrs = append(newAttrs, l.attrs...)

	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		newAttrs = append(newAttrs, slog.Any(key, args[i+1]))
	}

	return &Logger{
		logger: l.logger,
		closer: l.closer,
		attrs:  newAttrs,
	}
}

// withAttr creates a new Logger with an additional attribute.
func (l *Logger) withAttr(attr slog.Attr) *Logger {
	newAttrs := make([]slog.Attr, len(l.attrs)+1)
	copy(newAttrs, l.attrs)
	newAttrs[len(l.attrs)] = attr

	return &Logger{
		logger: l.logger,
		closer: l.closer,
		attrs:  newAttrs,
	}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

// log combines persistent attributes with per-call arguments.
func (l *Logger) log(level slog.Level, msg string, args ...any) {
	allArgs := make([]any, 0, len(l.attrs)*2+len(args))
	for _, attr := range l.attrs {
		allArgs = append(allArgs, attr.Key, attr.Value.Any())
	}
	allArgs = append(allArgs, args...)

	l.logger.Log(context.Background(), level, msg, allArgs...)
}

// Close flushes and closes the underlying log file. It is a no-op for
// loggers writing to stderr.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer != nil {
		if err := l.closer.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		l.closer = nil
	}
	return nil
}

// NopLogger returns a Logger that discards all log output.
// Useful for testing or when logging is disabled.
func NopLogger() *Logger {
	return &Logger{
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		attrs:  make([]slog.Attr, 0),
	}
}

// ParseLevel normalizes a user-provided level string to one of the level
// constants. Returns LevelInfo if the level string is not recognized.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return LevelDebug
	case LevelInfo:
		return LevelInfo
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// ValidFormats returns the list of valid log output formats.
func ValidFormats() []string {
	return []string{FormatJSON, FormatText}
}
