package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrorFileLogger appends "<timestamp> - <message>" lines to a file.
// A zero path disables it.
type ErrorFileLogger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewErrorFileLogger creates a logger writing to path
func NewErrorFileLogger(path string) *ErrorFileLogger {
	return &ErrorFileLogger{path: path, now: time.Now}
}

// Path returns the file the logger appends to
func (l *ErrorFileLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one line. Errors opening the file are returned, not logged,
// so callers can fall back to the structured logger.
func (l *ErrorFileLogger) Append(message string) error {
	if l == nil || l.path == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()

	timestamp := l.now().Format("2006-01-02 15:04:05")
	_, err = fmt.Fprintf(f, "%s - %s\n", timestamp, message)
	return err
}
