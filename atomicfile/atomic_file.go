package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrCancelled is returned by calls subsequent to RemoveIfNotClosed()
	ErrCancelled = errors.New("cancelled")

	// ensure we implement desired interface
	_ io.WriteCloser = &File{}
)

// File is a destination file being written atomically
type File struct {
	dstPath string
	dir     string
	tmp     *os.File
	tmpPath string
	// first error, returned by all later calls
	err error
}

// New starts writing path. Nothing is visible at path until Close.
func New(path string) (*File, error) {
	dir, name := filepath.Split(path)
	if name == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	// temp file in the same directory so that rename doesn't cross devices
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath: path,
		dir:     dir,
		tmp:     tmp,
		tmpPath: tmp.Name(),
	}, nil
}

func (f *File) closed() bool {
	return f.tmp == nil
}

// fail remembers the first error and removes the temporary file
func (f *File) fail(err error) error {
	if f.err == nil {
		f.err = err
	}
	if !f.closed() {
		_ = f.tmp.Close()
		_ = os.Remove(f.tmpPath)
		f.tmp = nil
	}
	return f.err
}

func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmp.Write(d)
	if err != nil {
		return n, f.fail(err)
	}
	return n, nil
}

// RemoveIfNotClosed removes the temp file if we didn't Close it yet.
// Use it with defer to clean up on early returns and panics.
// After Close it's a no-op.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.closed() {
		return
	}
	_ = f.fail(ErrCancelled)
}

// Close syncs the data and renames the temporary file to the destination.
// Can be called multiple times, returns the first error.
func (f *File) Close() error {
	if f.closed() {
		return f.err
	}
	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	if err := f.tmp.Sync(); err != nil {
		return f.fail(err)
	}
	if err := f.tmp.Close(); err != nil {
		f.tmp = nil
		_ = os.Remove(f.tmpPath)
		return f.fail(err)
	}
	f.tmp = nil
	// this will over-write dstPath (if it exists)
	if err := os.Rename(f.tmpPath, f.dstPath); err != nil {
		_ = os.Remove(f.tmpPath)
		return f.fail(err)
	}
	// make the rename durable. errors are ignored, it's a nice to have
	if d, _ := os.Open(f.dir); d != nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
