package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/render"
	"github.com/pithecene-io/skelcap/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	// Bridge is the bridge contract version this binary speaks.
	Bridge string `json:"bridge_contract"`
}

// VersionCommand returns the version command.
// It must not start the tracking bridge.
func VersionCommand(_, commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		resp := VersionResponse{
			Version: types.Version,
			Commit:  commit,
			Bridge:  types.BridgeContractVersion,
		}

		return r.Render(resp)
	}
}
