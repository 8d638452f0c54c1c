package logger

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Logger represents application logger.
type Logger struct {
	*slog.Logger
}

// New creates new Logger instance with the specified level.
func New(level int) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(level)})),
	}
}

// Fatal is equivalent to Error followed by os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}

// Component returns a logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// ErrorToken logs the error and returns a timestamp token to append to
// user-facing failure text, so a human can match the message to the log
// line.
func (l *Logger) ErrorToken(msg string, err error) string {
	now := time.Now()
	l.Logger.Error(msg, "error", err, "token", now.Unix())
	return fmt.Sprintf(" [%d]", now.Unix())
}
