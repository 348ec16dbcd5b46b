package u

import (
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// extension of a compressed file, normalized, or "" if not compressed
func compressionExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gz", ".bz2", ".br":
		return ext
	case ".zst", ".zstd":
		return ".zst"
	}
	return ""
}

// IsCompressedPath returns true if the extension of path is one of the
// compression formats we know
func IsCompressedPath(path string) bool {
	return compressionExt(path) != ""
}

// implement io.ReadCloser over os.File wrapped with io.Reader.
// io.Closer goes to os.File, io.Reader goes to wrapping reader
type readerWrappedFile struct {
	f     *os.File
	r     io.Reader
	close func()
}

func (rc *readerWrappedFile) Close() error {
	if rc.close != nil {
		rc.close()
	}
	return rc.f.Close()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

// OpenFileMaybeCompressed opens a file that might be compressed with gzip
// or bzip2 or zstd or brotli, based on file extension
func OpenFileMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc := &readerWrappedFile{f: f}
	switch compressionExt(path) {
	case ".gz":
		rc.r, err = gzip.NewReader(f)
	case ".bz2":
		rc.r = bzip2.NewReader(f)
	case ".zst":
		var zr *zstd.Decoder
		zr, err = zstd.NewReader(f)
		if err == nil {
			rc.r = zr
			rc.close = zr.Close
		}
	case ".br":
		rc.r = brotli.NewReader(f)
	default:
		return f, nil
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return rc, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func zstdNewWriter(dst io.Writer) (*zstd.Encoder, error) {
	// in my tests:
	// - zstd.SpeedBestCompression is much slower and not much better
	// - default concurrency is GONUMPROCS() but adding concurrency of any value
	//   doesn't consistently speed things up
	return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
}

// NewWriterMaybeCompressed wraps w in a compressing writer picked by the
// extension of path (.gz, .zst, .br). Close flushes compressed data but
// doesn't close w. Other extensions (including .bz2, which we can only
// read) write to w as is.
func NewWriterMaybeCompressed(w io.Writer, path string) (io.WriteCloser, error) {
	switch compressionExt(path) {
	case ".gz":
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case ".zst":
		return zstdNewWriter(w)
	case ".br":
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	}
	return nopWriteCloser{w}, nil
}
