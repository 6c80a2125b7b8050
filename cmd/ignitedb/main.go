// Command ignitedb is a thin CLI wrapper around the ignitedb engine: an
// external collaborator, not part of the storage engine itself. It exposes
// put, ask (get), remove (delete), compact and destroy, resolving the database
// directory from the IGNITEDB_DATA_DIR environment variable.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/ignitedb/ignitedb/pkg/errors"
	"github.com/ignitedb/ignitedb/pkg/ignitedb"
	"github.com/ignitedb/ignitedb/pkg/options"
)

const dataDirEnvVar = "IGNITEDB_DATA_DIR"

func main() {
	env := map[string]string{dataDirEnvVar: os.Getenv(dataDirEnvVar)}
	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:], env))
}

func run(out, errOut io.Writer, args []string, env map[string]string) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	dataDir := env[dataDirEnvVar]
	if dataDir == "" {
		return reportError(errOut, errors.NewRequiredFieldError(dataDirEnvVar))
	}

	ctx := context.Background()

	switch args[0] {
	case "put":
		return cmdPut(ctx, errOut, dataDir, args[1:])
	case "ask", "get":
		return cmdAsk(ctx, out, errOut, dataDir, args[1:])
	case "remove", "rm", "delete":
		return cmdRemove(ctx, errOut, dataDir, args[1:])
	case "compact":
		return cmdCompact(ctx, errOut, dataDir, args[1:])
	case "destroy":
		return cmdDestroy(errOut, dataDir, args[1:])
	case "-h", "--help", "help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "ignitedb: unknown command %q\n", args[0])
		printUsage(errOut)
		return 2
	}
}

// reportError writes err to errOut with whatever structured context its
// underlying type carries, and picks an exit code from its category:
// validation failures are the caller's fault (2), everything else is an
// operational failure (1).
func reportError(errOut io.Writer, err error) int {
	if errors.IsValidationError(err) {
		ve, _ := errors.AsValidationError(err)
		fmt.Fprintf(errOut, "ignitedb: %s (field=%s rule=%s)\n", ve.Error(), ve.Field(), ve.Rule())
		return 2
	}

	if errors.IsStorageError(err) {
		se, _ := errors.AsStorageError(err)
		fmt.Fprintf(errOut, "ignitedb: %s [%s]", se.Error(), errors.GetErrorCode(err))
		if details := errors.GetErrorDetails(err); len(details) > 0 {
			fmt.Fprintf(errOut, " %v", details)
		}
		fmt.Fprintln(errOut)
		return 1
	}

	if errors.IsIndexError(err) {
		ie, _ := errors.AsIndexError(err)
		fmt.Fprintf(errOut, "ignitedb: %s [%s] key=%q\n", ie.Error(), errors.GetErrorCode(err), ie.Key())
		return 1
	}

	fmt.Fprintln(errOut, "ignitedb:", err)
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: ignitedb <put|ask|remove|compact|destroy> [args]")
	fmt.Fprintln(w, "  put <key> <value>   store value under key")
	fmt.Fprintln(w, "  ask <key>           print the value stored under key")
	fmt.Fprintln(w, "  remove <key>        delete key")
	fmt.Fprintln(w, "  compact             reclaim space from sealed segments")
	fmt.Fprintln(w, "  destroy             remove the entire database directory")
	fmt.Fprintln(w, "directory is read from the IGNITEDB_DATA_DIR environment variable")
}

func openDB(dataDir string) (*ignitedb.DB, error) {
	return ignitedb.Open("ignitedb-cli", options.WithDataDir(dataDir))
}

func cmdPut(ctx context.Context, errOut io.Writer, dataDir string, args []string) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		fmt.Fprintln(errOut, "usage: ignitedb put <key> <value>")
		return 2
	}

	db, err := openDB(dataDir)
	if err != nil {
		return reportError(errOut, err)
	}
	defer db.Close(ctx)

	if err := db.Put(ctx, []byte(fs.Arg(0)), []byte(fs.Arg(1))); err != nil {
		return reportError(errOut, err)
	}
	return 0
}

func cmdAsk(ctx context.Context, out, errOut io.Writer, dataDir string, args []string) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: ignitedb ask <key>")
		return 2
	}

	db, err := openDB(dataDir)
	if err != nil {
		return reportError(errOut, err)
	}
	defer db.Close(ctx)

	value, err := db.Get(ctx, []byte(fs.Arg(0)))
	if err != nil {
		return reportError(errOut, err)
	}

	out.Write(value)
	return 0
}

func cmdRemove(ctx context.Context, errOut io.Writer, dataDir string, args []string) int {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: ignitedb remove <key>")
		return 2
	}

	db, err := openDB(dataDir)
	if err != nil {
		return reportError(errOut, err)
	}
	defer db.Close(ctx)

	if err := db.Delete(ctx, []byte(fs.Arg(0))); err != nil {
		return reportError(errOut, err)
	}
	return 0
}

func cmdDestroy(errOut io.Writer, dataDir string, args []string) int {
	fs := flag.NewFlagSet("destroy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: ignitedb destroy")
		return 2
	}

	if err := ignitedb.Destroy(dataDir); err != nil {
		return reportError(errOut, err)
	}
	return 0
}

func cmdCompact(ctx context.Context, errOut io.Writer, dataDir string, args []string) int {
	fs := flag.NewFlagSet("compact", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: ignitedb compact")
		return 2
	}

	db, err := openDB(dataDir)
	if err != nil {
		return reportError(errOut, err)
	}
	defer db.Close(ctx)

	if err := db.Compact(ctx); err != nil {
		return reportError(errOut, err)
	}
	return 0
}
