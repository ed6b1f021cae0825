package log

import (
	"io"
	"os"
)

// ConsoleOutput writes formatted entries to stderr for Warn/Error/Fatal and
// stdout otherwise.
type ConsoleOutput struct{}

// NewConsoleOutput constructs a ConsoleOutput.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{} }

func (c *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	w := os.Stdout
	if entry.Level >= WarnLevel {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

func (c *ConsoleOutput) Close() error { return nil }

// WriterOutput writes formatted entries to an arbitrary io.Writer, useful
// for tests and for redirecting to files already opened by the caller.
type WriterOutput struct {
	W io.Writer
}

// NewWriterOutput wraps w as an Output.
func NewWriterOutput(w io.Writer) *WriterOutput { return &WriterOutput{W: w} }

func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	_, err := o.W.Write(formatted)
	return err
}

func (o *WriterOutput) Close() error { return nil }

// NullOutput discards every entry. Used as a safe default when a caller
// wants a Logger purely for its interface without any actual output.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }
