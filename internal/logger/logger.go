// Package logger wraps log/slog with JSON output, runtime level control,
// and field helpers for module and request-scoped logging.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

type contextKey string

// Context keys for values WithContext lifts into log fields.
const (
	RequestIDKey contextKey = "request_id"
	ModuleKey    contextKey = "module"
)

// Level is a log level with lowercase String output.
type Level slog.Level

func (l Level) String() string {
	switch slog.Level(l) {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warning"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// Logger is the application logger. Derived loggers from the With* helpers
// share the parent's level and output.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	out   *swappableWriter
}

// swappableWriter lets tests redirect output after construction.
type swappableWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swappableWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *swappableWriter) swap(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// New creates a JSON logger writing to stdout. Unknown level names fall
// back to info.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(level string, w io.Writer) *Logger {
	lvl, _ := parseLevel(level)

	levelVar := new(slog.LevelVar)
	levelVar.Set(lvl)

	out := &swappableWriter{w: w}
	opts := &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.LevelKey:
				a.Key = "level"
				if lv, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(Level(lv).String())
				}
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	}

	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(out, opts)),
		level:  levelVar,
		out:    out,
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// GetLevel returns the current level.
func (l *Logger) GetLevel() Level {
	return Level(l.level.Level())
}

// SetLevel changes the level at runtime. Unknown names are rejected.
func (l *Logger) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(lvl)
	return nil
}

// SetOutput redirects log output. Mainly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.swap(w)
}

func (l *Logger) derive(sl *slog.Logger) *Logger {
	return &Logger{Logger: sl, level: l.level, out: l.out}
}

// WithModule attaches a module field.
func (l *Logger) WithModule(module string) *Logger {
	return l.derive(l.With("module", module))
}

// WithRequestID attaches a request_id field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.derive(l.With("request_id", requestID))
}

// WithError attaches an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.derive(l.With("error", err.Error()))
}

// WithField attaches a single field.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.derive(l.With(key, value))
}

// WithFields attaches multiple fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.derive(l.With(args...))
}

// WithContext lifts request_id and module values out of the context,
// when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	out := l
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		out = out.WithRequestID(id)
	}
	if module, ok := ctx.Value(ModuleKey).(string); ok && module != "" {
		out = out.WithModule(module)
	}
	return out
}

// Fatal logs at error level and exits. Startup failures only.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}
