package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes log entries to the console.
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	errorToStderr bool
}

// ConsoleOutputOption configures a ConsoleOutput.
type ConsoleOutputOption func(*ConsoleOutput)

// WithWriter directs output to a custom writer. Used by tests.
func WithWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.writer = w
	}
}

// WithErrorsToStderr sends error and fatal entries to stderr.
func WithErrorsToStderr() ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.errorToStderr = true
	}
}

// NewConsoleOutput creates a console output writing to stdout.
func NewConsoleOutput(options ...ConsoleOutputOption) *ConsoleOutput {
	o := &ConsoleOutput{}
	for _, option := range options {
		option(o)
	}
	return o
}

// Write writes the formatted entry.
func (o *ConsoleOutput) Write(entry *Entry, formattedEntry []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	writer := o.writer
	if writer == nil {
		writer = os.Stdout
	}
	if o.errorToStderr && (entry.Level == ErrorLevel || entry.Level == FatalLevel) {
		writer = os.Stderr
	}

	_, err := writer.Write(formattedEntry)
	return err
}

// Close implements the Output interface; console output has nothing to release.
func (o *ConsoleOutput) Close() error {
	return nil
}
