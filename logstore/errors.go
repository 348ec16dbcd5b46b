package logstore

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for a missing or malformed required input,
// e.g. an empty path
var ErrInvalidArgument = errors.New("invalid argument")

// IOError is returned when the log file can't be opened, locked, read or written
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("logstore: %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func ioErr(op string, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

// ParseError is returned when a non-blank line of the log is not valid JSON
type ParseError struct {
	Path string
	// position of the line in the file
	Offset int64
	Line   string
	Err    error
}

func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > 64 {
		line = line[:64] + "..."
	}
	return fmt.Sprintf("logstore: %s: invalid JSON at offset %d (%q): %s", e.Path, e.Offset, line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
