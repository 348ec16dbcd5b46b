package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/kjk/entrylog/entry"
	"github.com/kjk/entrylog/log"
	"github.com/kjk/entrylog/logstore"
)

// parseValue treats s as JSON if it's valid JSON (numbers, true, [..], {..})
// and as a string otherwise
func parseValue(s string) any {
	v, err := logstore.DecodeJSON([]byte(s))
	if err != nil {
		return s
	}
	return v
}

func cmdAdd(args []string, stdout io.Writer) error {
	flags, path := newFlagSet("add")
	dryRun := flags.Bool("dry-run", false, "print the entry instead of saving it")
	if err := parseFlags(flags, path, args); err != nil {
		return err
	}

	return entry.Log(*path, func(e *entry.Entry) error {
		for _, kv := range flags.Args() {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				// don't save a half-filled entry
				e.CancelAutosave()
				return fmt.Errorf("add: invalid argument '%s', expected key=value", kv)
			}
			e.Set(k, parseValue(v))
		}
		if !*dryRun {
			log.Verbosef("adding entry with %d fields to '%s'\n", e.Len(), *path)
			return nil
		}
		e.CancelAutosave()
		d, err := e.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%s\n", d)
		return err
	})
}
