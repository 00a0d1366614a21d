package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/render"
	"github.com/pithecene-io/skelcap/log"
	"github.com/pithecene-io/skelcap/metrics"
	"github.com/pithecene-io/skelcap/runtime"
	"github.com/pithecene-io/skelcap/types"
)

// ListenCommand returns the listen command: wait for remote start
// commands and record one live session per command.
func ListenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Wait for OSC or MQTT start commands and record on demand",
		Flags: joinFlags(
			[]cli.Flag{ConfigFlag},
			trackerFlags(),
			captureFlags(),
			controlFlags("osc"),
			archiveFlags(),
			adapterFlags(),
		),
		Action: listenAction,
	}
}

func listenAction(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	setup, err := prepareCapture(ctx, c, types.SessionModeLive, "", true)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer setup.close()
	if setup.transport == nil {
		return cli.Exit("listen requires --control osc or mqtt", exitUsage)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger := log.NewLogger(nil)
	if setup.session.LogOutput != nil {
		logger = logger.WithOutput(setup.session.LogOutput)
	}
	template := setup.session
	// Each session builds a logger carrying its own ID.
	template.Logger = nil

	failed := 0
	daemon := runtime.NewDaemon(runtime.DaemonConfig{
		Transport: setup.transport,
		Template:  template,
		Logger:    logger,
		OnResult: func(result *runtime.SessionResult) {
			if !result.Success() {
				failed++
			}
			if !setup.quiet {
				printSessionResult(os.Stdout, result)
				fmt.Fprintln(os.Stdout)
			}
			printReport(os.Stderr, result)
		},
	})

	if err := daemon.Run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("listen failed: %v", err), exitUsage)
	}
	if setup.report != "" {
		snap := setup.session.Collector.Snapshot()
		if err := writeMetricsReport(setup.report, &snap); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", err)
		}
	}
	if !setup.quiet {
		fmt.Fprintf(os.Stdout, "sessions: %d (%d failed)\n", daemon.Sessions(), failed)
	}
	return nil
}

// writeMetricsReport writes the aggregate listen-mode metrics as JSON.
// A path of "-" writes to stderr.
func writeMetricsReport(path string, snap *metrics.Snapshot) error {
	if path == "-" {
		return render.NewRendererWithWriter(render.FormatJSON, true, os.Stderr).Render(snap)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.NewRendererWithWriter(render.FormatJSON, true, f).Render(snap); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
