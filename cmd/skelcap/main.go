// Package main provides the skelcap CLI entrypoint.
//
// Usage:
//
//	skelcap <command> [subcommand] [options]
//
// Exit codes for record and replay:
//   - 0: frames captured and exported
//   - 1: setup or capture error
//   - 2: export error
//   - 3: invalid output path
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/cmd"
	"github.com/pithecene-io/skelcap/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "skelcap",
		Usage:          "Skeletal motion capture to FBX and glTF animation",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RecordCommand(),
			cmd.ReplayCommand(),
			cmd.ListenCommand(),
			cmd.InspectCommand(),
			cmd.SessionsCommand(),
			cmd.VersionCommand("", commit),
		},
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
// This ensures record and replay outcome codes are propagated.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// Only print if there's a real message (not just "exit status N")
		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
