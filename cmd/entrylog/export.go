package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kjk/entrylog/atomicfile"
	"github.com/kjk/entrylog/log"
	"github.com/kjk/entrylog/logstore"
	"github.com/kjk/entrylog/u"
)

// writeEntries writes lines of the log at path to w, one per line.
// The log is read newest first so oldest first needs all lines in memory.
func writeEntries(w io.Writer, path string, newestFirst bool) (int, error) {
	s, err := logstore.New(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	var lines [][]byte
	n := 0
	for {
		line, ok, err := s.NextLine()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		if !json.Valid(line) {
			return n, fmt.Errorf("export: invalid JSON in '%s': %s", path, line)
		}
		n++
		if !newestFirst {
			lines = append(lines, bytes.Clone(line))
			continue
		}
		if _, err = fmt.Fprintf(w, "%s\n", line); err != nil {
			return n, err
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if _, err = fmt.Fprintf(w, "%s\n", lines[i]); err != nil {
			return n, err
		}
	}
	return n, nil
}

func cmdExport(args []string) error {
	flags, path := newFlagSet("export")
	out := flags.String("o", "", "destination file, compressed if it ends with .gz, .zst or .br")
	newestFirst := flags.Bool("newest-first", false, "write newest entries first (doesn't buffer the log in memory)")
	if err := parseFlags(flags, path, args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("export: missing -o <destination>")
	}

	f, err := atomicfile.New(*out)
	if err != nil {
		return err
	}
	// a failed export leaves no partial file
	defer f.RemoveIfNotClosed()

	w, err := u.NewWriterMaybeCompressed(f, *out)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	n, err := writeEntries(bw, *path, *newestFirst)
	if err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	log.Verbosef("exported %d entries from '%s' to '%s' (%s)\n", n, *path, *out, u.FormatSize(u.FileSize(*out)))
	return nil
}

func importFile(logPath string, path string) (int, error) {
	r, err := u.OpenFileMaybeCompressed(path)
	if err != nil {
		return 0, err
	}
	defer u.CloseNoError(r)

	scanner := bufio.NewScanner(r)
	// entries can be much bigger than the default 64 kB limit
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	n := 0
	lineNo := 0
	var buf bytes.Buffer
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		buf.Reset()
		if err = json.Compact(&buf, line); err != nil {
			return n, fmt.Errorf("import: %s:%d: invalid JSON: %w", path, lineNo, err)
		}
		if err = logstore.Append(logPath, buf.String()); err != nil {
			return n, err
		}
		n++
	}
	if err = scanner.Err(); err != nil {
		return n, fmt.Errorf("import: error reading '%s': %w", path, err)
	}
	return n, nil
}

func cmdImport(args []string) error {
	flags, path := newFlagSet("import")
	if err := parseFlags(flags, path, args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("import: no files to import")
	}
	for _, in := range flags.Args() {
		n, err := importFile(*path, in)
		if err != nil {
			return err
		}
		kind := "plain"
		if u.IsCompressedPath(in) {
			kind = "compressed"
		}
		log.Verbosef("imported %d entries from %s file '%s'\n", n, kind, in)
	}
	return nil
}
