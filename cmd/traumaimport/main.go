// Command traumaimport loads a trauma intake sheet into the registry
// database. Every table is written inside one transaction: the run either
// commits all of them or none.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/traumaregistry/intake/internal/core"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	msg := core.MapError(err)
	fmt.Fprintf(stderr, "ERROR: %v\n", err)
	if msg.Action != "" && exitCode(err) != exitUsage {
		fmt.Fprintf(stderr, "  %s (%s)\n", msg.Action, msg.Code)
	}
	return exitCode(err)
}

func newRootCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "traumaimport <file>",
		Short: "Import a trauma intake sheet (.csv or .xlsx, local or s3://)",
		Long: "Import a trauma intake sheet into the registry database.\n\n" +
			"All tables are written inside one transaction. Rows may fail\n" +
			"individually; a table that fails outright rolls back the whole run.",
		Version:      version,
		SilenceUsage: true,
		// Errors are printed by execute with their exit code.
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return withCode(exitUsage, fmt.Errorf("expected one input file, got %d arguments\nusage: %s", len(args), cmd.UseLine()))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Workbook sheet to read (default: IMPORT_SHEET or the first sheet)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write the JSON run report to this path")
	cmd.Flags().StringVar(&opts.failedRowsPath, "failed-rows", "", "Write failed rows as CSV to this path")

	cmd.AddCommand(newMigrateCmd(), newServeCmd())
	return cmd
}

// loadEnv reads .env when present. Overload lets the file win over the
// inherited environment.
func loadEnv() {
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	} else {
		slog.Debug("loaded .env file (overwriting existing env vars)")
	}
}
