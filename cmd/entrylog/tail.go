package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kjk/entrylog/logstore"
	"github.com/mattn/go-isatty"
	"github.com/tidwall/pretty"
	"github.com/toon-format/toon-go"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// formatter writes one entry line to w
type formatter func(w io.Writer, line []byte) error

func formatJSON(w io.Writer, line []byte) error {
	_, err := fmt.Fprintf(w, "%s\n", line)
	return err
}

func formatPretty(color bool) formatter {
	return func(w io.Writer, line []byte) error {
		d := pretty.Pretty(line)
		if color {
			d = pretty.Color(d, nil)
		}
		_, err := w.Write(d)
		return err
	}
}

func formatToon(w io.Writer, line []byte) error {
	v, err := logstore.DecodeJSON(line)
	if err != nil {
		return err
	}
	d, err := toon.Marshal(v)
	if err != nil {
		return err
	}
	// blank line between entries, like in the log
	_, err = fmt.Fprintf(w, "%s\n\n", d)
	return err
}

func pickFormatter(format string, stdout io.Writer) (formatter, error) {
	switch format {
	case "json":
		return formatJSON, nil
	case "pretty":
		return formatPretty(isTerminal(stdout)), nil
	case "toon":
		return formatToon, nil
	}
	return nil, fmt.Errorf("tail: unknown format '%s', expected json, pretty or toon", format)
}

func cmdTail(args []string, stdout io.Writer) error {
	flags, path := newFlagSet("tail")
	n := flags.Int("n", 10, "show at most n entries, 0 means all")
	format := flags.String("format", "json", "output format: json, pretty or toon")
	if err := parseFlags(flags, path, args); err != nil {
		return err
	}
	fmtEntry, err := pickFormatter(*format, stdout)
	if err != nil {
		return err
	}

	s, err := logstore.New(*path)
	if err != nil {
		return err
	}
	// we hold a lock that blocks writers until we're done
	defer s.Close()

	for i := 0; *n <= 0 || i < *n; i++ {
		line, ok, err := s.NextLine()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if !json.Valid(line) {
			return fmt.Errorf("tail: invalid JSON in '%s': %s", *path, line)
		}
		if err = fmtEntry(stdout, line); err != nil {
			return err
		}
	}
	return nil
}
