package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/config"
	"github.com/pithecene-io/skelcap/cli/tui"
	"github.com/pithecene-io/skelcap/control"
	"github.com/pithecene-io/skelcap/log"
	"github.com/pithecene-io/skelcap/metrics"
	"github.com/pithecene-io/skelcap/runtime"
	"github.com/pithecene-io/skelcap/tracking"
	"github.com/pithecene-io/skelcap/types"
)

// exitUsage covers flag and config errors. Session outcomes use the
// runtime exit codes.
const exitUsage = 1

// RecordCommand returns the record command: live capture from the
// attached camera into one animation file.
func RecordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Record a live capture and export it (.fbx, .gltf or .glb)",
		ArgsUsage: "<output>",
		Flags: joinFlags(
			[]cli.Flag{ConfigFlag, &cli.BoolFlag{
				Name:  "tui",
				Usage: "Show a live capture monitor; space ends the recording",
			}},
			trackerFlags(),
			captureFlags(),
			controlFlags("none"),
			archiveFlags(),
			adapterFlags(),
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: skelcap record <output>", exitUsage)
			}
			return captureAction(c, types.SessionModeLive, "", c.Args().First(), true)
		},
	}
}

// ReplayCommand returns the replay command: offline capture from a
// recording file into one animation file.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a recording through the tracker and export it",
		ArgsUsage: "<input.mkv> <output>",
		Flags: joinFlags(
			[]cli.Flag{ConfigFlag, &cli.BoolFlag{
				Name:  "tui",
				Usage: "Show a capture monitor; space ends the replay early",
			}},
			trackerFlags(),
			captureFlags(),
			archiveFlags(),
			adapterFlags(),
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: skelcap replay <input.mkv> <output>", exitUsage)
			}
			return captureAction(c, types.SessionModeReplay, c.Args().Get(0), c.Args().Get(1), false)
		},
	}
}

// captureSetup is everything a session needs, resolved from flags and
// config.
type captureSetup struct {
	session   runtime.SessionConfig
	transport control.Transport
	report    string
	quiet     bool
	closers   []func() error
}

func (s *captureSetup) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// prepareCapture resolves flags over config into a session config. The
// caller sets OutputPath and runs the session. withControl builds the
// control transport from the --control flags.
func prepareCapture(ctx context.Context, c *cli.Context, mode types.SessionMode, input string, withControl bool) (*captureSetup, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	var tracker config.TrackerConfig
	var capture config.CaptureConfig
	var exp config.ExportConfig
	if cfg != nil {
		tracker, capture, exp = cfg.Tracker, cfg.Capture, cfg.Export
	}

	sessionID := runtime.NewSessionID()
	setup := &captureSetup{
		report: c.String("report"),
		quiet:  c.Bool("quiet"),
	}
	logger := log.NewLogger(&types.SessionMeta{SessionID: sessionID, Mode: mode, Source: input})
	var logOutput io.Writer
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		setup.closers = append(setup.closers, f.Close)
		logOutput = f
		logger = logger.WithOutput(f)
	} else if c.Bool("tui") {
		// The monitor owns the terminal.
		logger = log.NewNopLogger()
	}

	device := tracker.DeviceConfig()
	device.FPS = resolveInt(c, "fps", tracker.FPS)
	device.DepthMode = resolveString(c, "depth-mode", tracker.DepthMode)
	device.ColorResolution = resolveString(c, "color-resolution", tracker.ColorResolution)

	backendName := tracker.Backend
	if backendName == "" {
		backendName = "bridge"
	}
	if c.Bool("dry-run") {
		backendName = "stub"
	}
	var backend tracking.Backend
	switch backendName {
	case "stub":
		backend = tracking.NewStubBackend(tracking.SyntheticFrames(c.Int("dry-run-frames"))...)
	default:
		backend = tracking.NewBridgeBackend(tracking.BridgeConfig{
			Path:   resolveString(c, "bridge-path", tracker.BridgePath),
			Args:   tracker.BridgeArgs,
			Env:    tracker.BridgeEnv,
			Logger: logger,
		})
	}

	budget := runtime.ReplayBudget()
	if mode == types.SessionModeLive {
		budget = runtime.LiveBudget()
		if resolveBool(c, "extended", capture.Extended) {
			budget = runtime.ExtendedLiveBudget()
		}
	}
	if n := resolveInt(c, "max-frames", capture.MaxFrames); n > 0 {
		budget.MaxFrames = n
	}
	budget.MaxDuration = resolveDuration(c, "max-duration", capture.MaxDuration.Duration)

	archive := parseArchiveConfig(c, cfg)
	collector := metrics.NewCollector(string(mode), backendName, archive.backend, sessionID)

	setup.session = runtime.SessionConfig{
		SessionID: sessionID,
		Source: tracking.Source{
			Mode:      mode,
			InputPath: input,
			Device:    device,
		},
		Overwrite:     resolveBool(c, "overwrite", exp.Overwrite),
		Budget:        budget,
		ExportPartial: resolveBoolPtr(c, "export-partial", capture.ExportPartial, mode == types.SessionModeReplay),
		Backend:       backend,
		Dispatcher: buildDispatcher(
			resolveBoolPtr(c, "floor", exp.Floor, true),
			exp.FloorHalfExtent,
			resolveFloat(c, "gltf-scale", exp.GLTFScale),
		),
		Stop:      control.NewStopSignal(),
		Collector: collector,
		Logger:    logger,
		LogOutput: logOutput,
	}

	arch, err := buildArchive(ctx, archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if arch != nil {
		setup.session.Archive = arch
	}

	adapterType := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type }))
	if adapterType != "" {
		choice, err := parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return nil, err
		}
		pub, err := buildAdapter(choice)
		if err != nil {
			return nil, fmt.Errorf("failed to create adapter: %w", err)
		}
		setup.session.Publisher = pub
		setup.closers = append(setup.closers, pub.Close)
	}

	if withControl {
		choice, err := parseControlConfig(c, cfg)
		if err != nil {
			setup.close()
			return nil, err
		}
		transport, err := buildTransport(choice, logger)
		if err != nil {
			setup.close()
			return nil, fmt.Errorf("failed to create control transport: %w", err)
		}
		if transport != nil {
			setup.transport = transport
			setup.closers = append(setup.closers, transport.Close)
		}
	}
	return setup, nil
}

func captureAction(c *cli.Context, mode types.SessionMode, input, output string, withControl bool) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	setup, err := prepareCapture(ctx, c, mode, input, withControl)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer setup.close()
	setup.session.OutputPath = output
	stop := setup.session.Stop

	// The first interrupt ends the capture and still exports; a second
	// one cancels.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-sigCh:
				if !stop.SetBy("interrupt") {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if setup.transport != nil {
		setup.transport.SetStop(stop)
		if err := setup.transport.Start(ctx); err != nil {
			return cli.Exit(fmt.Sprintf("failed to start control transport: %v", err), exitUsage)
		}
		setup.session.Notifier = setup.transport
	}

	var monitor *tui.Monitor
	if c.Bool("tui") {
		monitor = tui.StartMonitor(monitorTitle(mode, output), func() { stop.SetBy("monitor") })
		setup.session.OnProgress = func(p runtime.Progress) {
			monitor.Progress(tui.MonitorProgress{
				State:   p.State.String(),
				Frames:  p.Frames,
				Ticks:   p.Ticks,
				Elapsed: p.Elapsed,
			})
		}
	}

	result := runtime.NewSession(setup.session).Execute(ctx)

	if monitor != nil {
		_ = monitor.Finish(tui.MonitorDone{
			Outcome: string(result.Outcome),
			Frames:  result.Frames,
			Output:  result.OutputPath,
			Report:  result.Report.Messages(),
		})
	}
	if !setup.quiet {
		printSessionResult(os.Stdout, result)
	}
	printReport(os.Stderr, result)

	if setup.report != "" {
		rep := runtime.BuildSessionReport(result, setup.session.Collector.Snapshot())
		if err := runtime.WriteSessionReport(rep, setup.report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", err)
		}
	}

	return cli.Exit("", result.ExitCode())
}

func monitorTitle(mode types.SessionMode, output string) string {
	if mode == types.SessionModeReplay {
		return "Replaying into " + output
	}
	return "Recording " + output
}

// printSessionResult writes the human-readable summary.
func printSessionResult(w io.Writer, result *runtime.SessionResult) {
	fmt.Fprintf(w, "session:  %s\n", result.Meta.SessionID)
	fmt.Fprintf(w, "mode:     %s\n", result.Meta.Mode)
	fmt.Fprintf(w, "outcome:  %s\n", result.Outcome)
	fmt.Fprintf(w, "frames:   %d (%d polls)\n", result.Frames, result.Ticks)
	if result.StopReason != runtime.StopNone {
		fmt.Fprintf(w, "stopped:  %s\n", result.StopReason)
	}
	fmt.Fprintf(w, "duration: %s\n", result.Duration.Truncate(time.Millisecond))
	if result.Export != nil {
		for _, f := range result.Export.Files {
			fmt.Fprintf(w, "wrote:    %s\n", f)
		}
	}
	for _, key := range result.ArchivedFiles {
		fmt.Fprintf(w, "archived: %s\n", key)
	}
}

// printReport writes the diagnostic report, one message per line.
func printReport(w io.Writer, result *runtime.SessionResult) {
	for _, msg := range result.Report.Messages() {
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
}

// exitCodeOf extracts the exit code from an action error.
func exitCodeOf(err error) int {
	if err == nil {
		return runtime.ExitCodeSuccess
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return exitUsage
}
