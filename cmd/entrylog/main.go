// entrylog adds entries to a log file and reads them back.
//
//	entrylog add -f app.log user=kjk count=3 'tags=["a","b"]'
//	entrylog tail -f app.log -n 10 -format pretty
//	entrylog export -f app.log -o backup.jsonl.zst
//	entrylog import -f restored.log backup.jsonl.zst
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kjk/entrylog/log"
)

func main() {
	if err := mainImpl(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "entrylog: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: entrylog [-log-dir dir] [-verbose] <command> [flags]

commands:
  add     add an entry: add -f <log> [-dry-run] key=value...
  tail    show entries, newest first: tail -f <log> [-n N] [-format json|pretty|toon]
  export  write entries as JSON Lines: export -f <log> -o <out> [-newest-first]
  import  append JSON Lines as entries: import -f <log> <file>...

compressed files (.gz, .zst, .br) are detected by extension
`

func mainImpl(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("entrylog", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	logDir := flags.String("log-dir", "", "directory for diagnostic log files")
	verbose := flags.Bool("verbose", false, "verbose logging")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	log.Verbose = *verbose
	log.Init(&log.Config{Dir: *logDir})
	defer log.Close()

	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}
	cmd, rest := flags.Arg(0), flags.Args()[1:]
	var err error
	switch cmd {
	case "add":
		err = cmdAdd(rest, stdout)
	case "tail":
		err = cmdTail(rest, stdout)
	case "export":
		err = cmdExport(rest)
	case "import":
		err = cmdImport(rest)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command '%s'", cmd)
	}
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

// newFlagSet returns flags of a command, all of which need the log file
func newFlagSet(name string) (*flag.FlagSet, *string) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	path := flags.String("f", "", "path of the log file")
	return flags, path
}

func parseFlags(flags *flag.FlagSet, path *string, args []string) error {
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("%s: missing -f <log file>", flags.Name())
	}
	return nil
}
