package cli

import (
	"fmt"
	"path/filepath"

	"github.com/convox/bundle/pkg/detect"
	"github.com/convox/bundle/pkg/strategy"
	"github.com/convox/bundle/pkg/structs"
	"github.com/convox/stdcli"
	"github.com/pkg/errors"
)

func init() {
	register("detect", "show the build tools bundling would use", Detect, stdcli.CommandOptions{
		Usage:    "[dir]",
		Validate: stdcli.ArgsMax(1),
	})
}

func Detect(e *Engine, c *stdcli.Context) error {
	dir, err := filepath.Abs(c.Arg(0))
	if err != nil {
		return errors.WithStack(err)
	}

	esbuild := e.Cache.Detect(detect.Esbuild, dir)
	tsc := e.Cache.Detect(detect.Tsc, dir)

	d, err := strategy.Decide(structs.BundleOptions{}.WithDefaults(), esbuild, nil)
	if err != nil {
		return err
	}

	i := c.Info()

	i.Add("esbuild", installation(esbuild))
	i.Add("tsc", installation(tsc))
	i.Add("Strategy", d.String())

	if d.Reason != "" {
		i.Add("Reason", d.Reason)
	}

	return i.Print()
}

func installation(t *structs.ToolInstallation) string {
	if !t.Found() {
		return "not found"
	}

	if t.IsLocal {
		return fmt.Sprintf("%s (local)", t.Version)
	}

	return fmt.Sprintf("%s (global)", t.Version)
}
