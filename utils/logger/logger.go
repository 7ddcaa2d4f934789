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

// sharedWriter is the destination of every logger created without a writer.
type sharedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sharedWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var (
	sharedOut   = &sharedWriter{w: os.Stdout}
	sharedMu    sync.Mutex
	sharedLevel []*slog.LevelVar
)

// SetDefaults redirects and re-levels every logger created with a nil
// writer. A nil w keeps the current destination.
func SetDefaults(level string, w io.Writer) {
	if w != nil {
		sharedOut.mu.Lock()
		sharedOut.w = w
		sharedOut.mu.Unlock()
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	for _, lv := range sharedLevel {
		lv.Set(ParseLevel(level))
	}
}

// Logger is a named leveled logger. All output goes through a slog text handler.
type Logger struct {
	name  string
	level *slog.LevelVar
	inner *slog.Logger
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a slog level. Unknown values fall back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
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

// NewLogger creates a logger writing to w. With a nil w the logger writes
// to the shared destination (stdout unless changed by SetDefaults).
func NewLogger(name string, level string, w io.Writer) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(level))
	if w == nil {
		w = sharedOut
		sharedMu.Lock()
		sharedLevel = append(sharedLevel, lv)
		sharedMu.Unlock()
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	return &Logger{
		name:  name,
		level: lv,
		inner: slog.New(h).With("logger", name),
	}
}

func (l *Logger) Name() string {
	return l.name
}

// SetLevel changes the level at runtime.
func (l *Logger) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

func (l *Logger) Enabled(level slog.Level) bool {
	return l.inner.Enabled(context.Background(), level)
}

func (l *Logger) logf(level slog.Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.inner.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(slog.LevelDebug, format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(slog.LevelInfo, format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logf(slog.LevelWarn, format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(slog.LevelError, format, args...)
}

// Progressf logs an INFO line prefixed with "[current/total]".
func (l *Logger) Progressf(current, total int, format string, args ...any) {
	if !l.Enabled(slog.LevelInfo) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.inner.Info(fmt.Sprintf("[%d/%d] %s", current, total, msg), "current", current, "total", total)
}
