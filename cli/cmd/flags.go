// Package cmd provides CLI commands for the skelcap binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/adapter/redis"
	"github.com/pithecene-io/skelcap/adapter/webhook"
	"github.com/pithecene-io/skelcap/control"
	"github.com/pithecene-io/skelcap/lode"
	"github.com/pithecene-io/skelcap/tracking"
	"github.com/pithecene-io/skelcap/types"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for inspect, sessions inspect and sessions stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, sessions inspect/stats only)",
	}

	// ConfigFlag points at a skelcap.yaml. When absent, ./skelcap.yaml is
	// used if it exists.
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to skelcap.yaml config file (default ./skelcap.yaml if present)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// archiveFlags select the session archive.
func archiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "archive-dataset",
			Usage: "Archive dataset ID",
			Value: lode.DefaultDataset,
		},
		&cli.StringFlag{
			Name:  "archive-backend",
			Usage: "Archive backend: fs or s3 (empty disables archiving)",
		},
		&cli.StringFlag{
			Name:  "archive-path",
			Usage: "Archive path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "archive-region",
			Usage: "AWS region for S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "archive-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "archive-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// adapterFlags configure the session-completed publisher.
func adapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Event-bus adapter for session notifications: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint URL (webhook: HTTP URL, redis: redis:// URL)",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel (default " + redis.DefaultChannel + ")",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
			Value: webhook.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Retry attempts on publish failure",
			Value: webhook.DefaultRetries,
		},
	}
}

// controlFlags select the remote stop-signal transport.
func controlFlags(defaultTransport string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "control",
			Usage: "Remote control transport: osc, mqtt or none",
			Value: defaultTransport,
		},
		&cli.StringFlag{
			Name:  "osc-listen",
			Usage: "UDP address OSC commands arrive on",
			Value: control.DefaultOSCListenAddr,
		},
		&cli.StringFlag{
			Name:  "osc-notify",
			Usage: "host:port OSC status messages are sent to (empty disables)",
			Value: control.DefaultOSCNotifyAddr,
		},
		&cli.StringFlag{
			Name:  "mqtt-broker",
			Usage: "MQTT broker URL, e.g. tcp://localhost:1883",
		},
		&cli.StringFlag{
			Name:  "mqtt-topic-prefix",
			Usage: "MQTT topic prefix for control and status topics",
			Value: control.DefaultTopicPrefix,
		},
		&cli.StringFlag{
			Name:  "mqtt-client-id",
			Usage: "MQTT client ID (default generated)",
		},
	}
}

// trackerFlags configure the body-tracking backend.
func trackerFlags() []cli.Flag {
	dc := types.DefaultDeviceConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "bridge-path",
			Usage: "Path to the body-tracking bridge executable",
			Value: tracking.DefaultBridgePath,
		},
		&cli.IntFlag{
			Name:  "fps",
			Usage: "Camera frame rate: 5, 15 or 30",
			Value: dc.FPS,
		},
		&cli.StringFlag{
			Name:  "depth-mode",
			Usage: "Depth mode, e.g. NFOV_UNBINNED, WFOV_2X2BINNED",
			Value: dc.DepthMode,
		},
		&cli.StringFlag{
			Name:  "color-resolution",
			Usage: "Color resolution, e.g. 720P, 1080P, OFF",
			Value: dc.ColorResolution,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Use a synthetic tracker instead of the bridge",
		},
		&cli.IntFlag{
			Name:  "dry-run-frames",
			Usage: "Synthetic frames produced by --dry-run",
			Value: 90,
		},
	}
}

// captureFlags configure the budget and export of one session.
func captureFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "max-frames",
			Usage: "Stop after this many skeleton frames (0 = mode default)",
		},
		&cli.DurationFlag{
			Name:  "max-duration",
			Usage: "Stop after this much capture time (0 = no limit)",
		},
		&cli.BoolFlag{
			Name:  "extended",
			Usage: "Raise the live frame ceiling to one hour",
		},
		&cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Replace an existing output file",
		},
		&cli.BoolFlag{
			Name:  "export-partial",
			Usage: "Export buffered frames after a capture error (default: replay on, live off)",
		},
		&cli.BoolFlag{
			Name:  "floor",
			Usage: "Add a floor plane to FBX exports",
			Value: true,
		},
		&cli.Float64Flag{
			Name:  "gltf-scale",
			Usage: "Translation scale for glTF exports (1 = millimetres, 0.001 = metres)",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON session report to this path (- for stderr)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the result summary",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Append JSON logs to this file instead of stderr",
		},
	}
}

// joinFlags concatenates flag groups.
func joinFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
