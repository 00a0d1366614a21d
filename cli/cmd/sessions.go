package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/reader"
	"github.com/pithecene-io/skelcap/cli/render"
	"github.com/pithecene-io/skelcap/cli/tui"
	"github.com/pithecene-io/skelcap/lode"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// readTimeout bounds archive reads.
const readTimeout = 30 * time.Second

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SessionsCommand returns the sessions command with subcommands over the
// session archive.
func SessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Query archived capture sessions (list, inspect, stats, fetch)",
		Subcommands: []*cli.Command{
			sessionsListCommand(),
			sessionsInspectCommand(),
			sessionsStatsCommand(),
			sessionsFetchCommand(),
		},
	}
}

func archiveReadFlags() []cli.Flag {
	return append([]cli.Flag{ConfigFlag}, archiveFlags()...)
}

// openSessionReader builds a reader over the configured archive.
func openSessionReader(ctx context.Context, c *cli.Context) (*reader.SessionReader, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	choice := parseArchiveConfig(c, cfg)
	if choice.backend == "" {
		return nil, errors.New("--archive-backend and --archive-path are required")
	}
	archive, err := buildArchive(ctx, choice)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return reader.NewSessionReader(archive), nil
}

func sessionsListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List archived sessions, newest first",
		Flags: joinFlags(ReadOnlyFlags(), archiveReadFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Filter by mode: live, replay",
			},
			&cli.StringFlag{
				Name:  "day",
				Usage: "Filter by partition day (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Filter by outcome: success, setup_error, capture_error, export_error, invalid_output",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of sessions to return (0 = no limit)",
				Value: 0,
			},
		}),
		Action: sessionsListAction,
	}
}

func sessionsListAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	ctx, cancel := context.WithTimeout(c.Context, readTimeout)
	defer cancel()

	sr, err := openSessionReader(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	opts := reader.ListSessionsOptions{
		Mode:    c.String("mode"),
		Day:     c.String("day"),
		Outcome: c.String("outcome"),
		Limit:   c.Int("limit"),
	}
	results, err := sr.ListSessions(ctx, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to list sessions: %v", err), 1)
	}

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(results) > listWarningThreshold && opts.Limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(results))
	}

	return r.Render(results)
}

func sessionsInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect an archived session by ID",
		ArgsUsage: "<session-id>",
		Flags:     joinFlags(TUIReadOnlyFlags(), archiveReadFlags()),
		Action:    sessionsInspectAction,
	}
}

func sessionsInspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("session-id required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, readTimeout)
	defer cancel()

	sr, err := openSessionReader(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	detail, err := sr.InspectSession(ctx, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectSession, detail)
	}
	return r.Render(detail)
}

func sessionsStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Aggregate archived sessions",
		Flags: joinFlags(TUIReadOnlyFlags(), archiveReadFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Filter by mode: live, replay",
			},
			&cli.StringFlag{
				Name:  "day",
				Usage: "Filter by partition day (YYYY-MM-DD)",
			},
		}),
		Action: sessionsStatsAction,
	}
}

func sessionsStatsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, readTimeout)
	defer cancel()

	sr, err := openSessionReader(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	stats, err := sr.StatsSessions(ctx, lode.SessionFilter{
		Mode: c.String("mode"),
		Day:  c.String("day"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read sessions: %v", err), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsSessions, stats)
	}
	return r.Render(stats)
}

func sessionsFetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Copy an archived export file to a local path (- for stdout)",
		ArgsUsage: "<key> <dest>",
		Flags:     archiveReadFlags(),
		Action:    sessionsFetchAction,
	}
}

func sessionsFetchAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: skelcap sessions fetch <key> <dest>", 1)
	}

	ctx, cancel := context.WithTimeout(c.Context, readTimeout)
	defer cancel()

	sr, err := openSessionReader(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := sr.FetchFile(ctx, c.Args().Get(0), c.Args().Get(1), os.Stdout); err != nil {
		return cli.Exit(fmt.Sprintf("failed to fetch %s: %v", c.Args().Get(0), err), 1)
	}
	return nil
}
