package logstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"runtime"
	"strings"

	"github.com/kjk/entrylog/flock"
	"github.com/kjk/entrylog/revline"
)

// separates entries in the file
const separator = "\n\n"

type Store struct {
	Path string

	// if true, will call file.Sync() after every append
	SyncWrite bool

	// how much data to read at a time when reading backward,
	// 0 means revline.DefaultChunkSize
	ChunkSize int

	// read cursor, nil when no read is in progress
	file    *os.File
	lines   *revline.Reader
	cleanup runtime.Cleanup
	// a parse error sticks until EndRead
	err error
}

// New returns a Store for the log file at path. The file doesn't have to exist.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("logstore: path is empty: %w", ErrInvalidArgument)
	}
	return &Store{Path: path}, nil
}

func validateLine(line string) error {
	if line == "" {
		return fmt.Errorf("logstore: line is empty: %w", ErrInvalidArgument)
	}
	if strings.Contains(line, "\n") {
		return fmt.Errorf("logstore: line cannot contain newlines: %w", ErrInvalidArgument)
	}
	return nil
}

func appendLine(path string, line string, sync bool) (err error) {
	if path == "" {
		return fmt.Errorf("logstore: path is empty: %w", ErrInvalidArgument)
	}
	if err = validateLine(line); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return ioErr("open", path, err)
	}
	// closing releases the lock
	defer func() {
		errClose := file.Close()
		if err == nil && errClose != nil {
			err = ioErr("close", path, errClose)
		}
	}()

	if err = flock.Lock(file); err != nil {
		return ioErr("lock", path, err)
	}
	// must be checked after we got the lock
	off, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return ioErr("seek", path, err)
	}

	// one write so that separator and line go out together
	d := make([]byte, 0, len(separator)+len(line))
	if off > 0 {
		d = append(d, separator...)
	}
	d = append(d, line...)
	if _, err = file.Write(d); err != nil {
		return ioErr("write", path, err)
	}
	if sync {
		if err = file.Sync(); err != nil {
			return ioErr("sync", path, err)
		}
	}
	return nil
}

// Append appends line to the log file at path, creating the file if needed.
// line must be a single line of JSON. It's written as is, without a newline.
func Append(path string, line string) error {
	return appendLine(path, line, false)
}

// Append appends line to the log file
func (s *Store) Append(line string) error {
	return appendLine(s.Path, line, s.SyncWrite)
}

func releaseCursor(f *os.File) {
	_ = flock.Unlock(f)
	_ = f.Close()
}

// openCursor returns false if the log file doesn't exist
func (s *Store) openCursor() (bool, error) {
	if s.Path == "" {
		return false, fmt.Errorf("logstore: path is empty: %w", ErrInvalidArgument)
	}
	file, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioErr("open", s.Path, err)
	}
	if err = flock.RLock(file); err != nil {
		file.Close()
		return false, ioErr("lock", s.Path, err)
	}
	// size must be checked after we got the lock
	st, err := file.Stat()
	if err != nil {
		releaseCursor(file)
		return false, ioErr("stat", s.Path, err)
	}
	s.file = file
	s.lines = revline.NewSize(file, st.Size(), s.ChunkSize)
	// don't keep the lock forever if the caller forgets about the Store
	s.cleanup = runtime.AddCleanup(s, releaseCursor, file)
	return true, nil
}

// EndRead closes the read cursor and releases the lock.
// It's safe to call when no read is in progress.
func (s *Store) EndRead() {
	s.err = nil
	if s.file == nil {
		return
	}
	s.cleanup.Stop()
	releaseCursor(s.file)
	s.file = nil
	s.lines = nil
}

// Close ends a read in progress
func (s *Store) Close() error {
	s.EndRead()
	return nil
}

// NextLine returns the next non-blank line going backward from the end of
// the file. Returns false when there are no more lines, which also ends the read.
// The line is only valid until the next call.
func (s *Store) NextLine() ([]byte, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.lines == nil {
		ok, err := s.openCursor()
		if err != nil || !ok {
			return nil, false, err
		}
	}
	for s.lines.Next() {
		line := s.lines.Line()
		if len(bytes.TrimSpace(line)) == 0 {
			// separator
			continue
		}
		return line, true, nil
	}
	err := s.lines.Err()
	s.EndRead()
	if err != nil {
		return nil, false, ioErr("read", s.Path, err)
	}
	return nil, false, nil
}

// DecodeJSON decodes a single JSON value. Numbers are returned as
// json.Number so integers don't lose precision.
func DecodeJSON(d []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(d))
	dec.UseNumber()
	var v any
	err := dec.Decode(&v)
	if err == nil && len(bytes.TrimSpace(d[dec.InputOffset():])) == 0 {
		return v, nil
	}
	// json.Unmarshal reports all problems (including trailing data)
	// as *json.SyntaxError
	var tmp any
	if err = json.Unmarshal(d, &tmp); err == nil {
		err = errors.New("logstore: invalid JSON")
	}
	return nil, err
}

// NextEntry returns the next entry going backward from the end of the file,
// decoded with DecodeJSON. Returns false after the oldest entry, which also ends
// the read; the next call starts again from the end of the file.
//
// A line that is not valid JSON returns *ParseError. The error is returned
// by all calls until EndRead.
func (s *Store) NextEntry() (any, bool, error) {
	line, ok, err := s.NextLine()
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := DecodeJSON(line)
	if err != nil {
		s.err = &ParseError{
			Path:   s.Path,
			Offset: s.lines.Offset(),
			Line:   string(line),
			Err:    err,
		}
		return nil, false, s.err
	}
	return v, true, nil
}

// Entries returns an iterator over entries from the newest to the oldest.
// Stopping the loop early ends the read.
// Call the returned error function after iteration to check for errors.
func (s *Store) Entries() (iter.Seq[any], func() error) {
	var iterErr error

	seq := func(yield func(any) bool) {
		for {
			v, ok, err := s.NextEntry()
			if err != nil {
				iterErr = err
				s.EndRead()
				return
			}
			if !ok {
				return
			}
			if !yield(v) {
				s.EndRead()
				return
			}
		}
	}
	return seq, func() error { return iterErr }
}
