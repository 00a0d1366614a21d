package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/cli/reader"
	"github.com/pithecene-io/skelcap/cli/render"
	"github.com/pithecene-io/skelcap/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect summarizes one exported animation file.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarize an exported .fbx, .gltf or .glb file",
		ArgsUsage: "<export>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("export path required", 1)
	}

	summary, err := reader.InspectExport(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectExport, summary)
	}
	return r.Render(summary)
}
