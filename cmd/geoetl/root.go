package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK         = 0
	exitFatal      = 1
	exitFileFailed = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func fatal(format string, args ...any) error {
	return &exitError{code: exitFatal, err: fmt.Errorf(format, args...)}
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code == exitFileFailed {
			fmt.Fprintln(stderr, ee.err)
		} else {
			fmt.Fprintf(stderr, "geoetl: %v\n", ee.err)
		}
		return ee.code
	}
	// flag and argument errors from cobra
	fmt.Fprintf(stderr, "geoetl: %v\n", err)
	return exitFatal
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "geoetl",
		Short: "Load geospatial vector files into spatial database tables",
		Long: `
geoetl reads every vector file in an input directory, derives puid,
Geometry_Type and Geometry_Status, renames fields per dataset from a mapping
workbook, reprojects to WGS 84 and replaces one geography table per file.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newRunCommand(stdout, stderr),
		newValidateCommand(stdout, stderr),
		newMappingsCommand(stdout, stderr),
	)
	return root
}
