package log

import (
	"os"
)

// ConsoleAppender writes log lines straight to stdout without buffering.
// Stateless, so a single instance is safe to share between loggers.
type ConsoleAppender struct {
}

// NewConsoleAppender returns a stdout appender.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{}
}

// Write writes the line to stdout.
func (ca *ConsoleAppender) Write(buf []byte) (int, error) {
	return os.Stdout.Write(buf)
}

// Refresh is a no-op; writes are unbuffered.
func (ca *ConsoleAppender) Refresh() error {
	return nil
}

// Close is a no-op; stdout is not ours to close.
func (ca *ConsoleAppender) Close() error {
	return nil
}
