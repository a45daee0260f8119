package cli

import (
	"github.com/convox/bundle/pkg/metafile"
	"github.com/convox/stdcli"
)

func init() {
	register("analyze", "summarize an esbuild metafile", Analyze, stdcli.CommandOptions{
		Flags: []stdcli.Flag{
			stdcli.IntFlag("top", "t", "number of inputs to list (default 10)"),
			stdcli.BoolFlag("esbuild", "", "print the esbuild analysis instead"),
			stdcli.BoolFlag("verbose", "v", "include import paths in the esbuild analysis"),
		},
		Usage:    "<metafile>",
		Validate: stdcli.Args(1),
	})
}

func Analyze(e *Engine, c *stdcli.Context) error {
	m, err := metafile.Load(c.Arg(0))
	if err != nil {
		return err
	}

	if c.Bool("esbuild") {
		return c.Writef("%s", m.Text(c.Bool("verbose")))
	}

	top := c.Int("top")
	if top == 0 {
		top = 10
	}

	m.Analyze().Report(c, top)

	return nil
}
