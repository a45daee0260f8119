package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/convox/bundle/pkg/asset"
	"github.com/convox/bundle/pkg/bundle"
	"github.com/convox/bundle/pkg/command"
	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/manifest"
	"github.com/convox/bundle/pkg/metafile"
	"github.com/convox/bundle/pkg/prefix"
	"github.com/convox/bundle/pkg/watch"
	"github.com/convox/stdcli"
)

var bundleFlags = []stdcli.Flag{flagFile, flagOutput, flagDocker, flagLocal, flagImage, flagVersion}

func init() {
	register("build", "bundle functions from the manifest", Build, stdcli.CommandOptions{
		Flags: bundleFlags,
		Usage: "[function...]",
	})

	register("watch", "rebundle functions when sources change", Watch, stdcli.CommandOptions{
		Flags: append(bundleFlags, stdcli.DurationFlag("debounce", "", "wait this long for changes to settle")),
		Usage: "[function...]",
	})
}

func Build(e *Engine, c *stdcli.Context) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}

	out, err := outputDir(c, m)
	if err != nil {
		return err
	}

	names := functionNames(c, m)

	pw := prefix.NewWriter(c.Writer().Stderr, names)

	for _, name := range names {
		if _, err := e.bundle(c, m, name, out, pw); err != nil {
			return err
		}
	}

	return nil
}

func Watch(e *Engine, c *stdcli.Context) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}

	out, err := outputDir(c, m)
	if err != nil {
		return err
	}

	names := functionNames(c, m)

	pw := prefix.NewWriter(c.Writer().Stderr, names)

	rebuild := func() {
		for _, name := range names {
			if _, err := e.bundle(c, m, name, out, pw); err != nil {
				c.Error(err)
			}
		}
	}

	rebuild()

	exclude := append([]string{}, watch.DefaultExclude...)

	if helpers.Within(m.Dir(), out) {
		if rel, err := filepath.Rel(m.Dir(), out); err == nil && rel != "." {
			exclude = append(exclude, filepath.ToSlash(rel))
		}
	}

	opts := watch.Options{Exclude: exclude}

	if d, ok := c.Value("debounce").(time.Duration); ok {
		opts.Debounce = d
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c.Writef("Watching <info>%s</info>\n", m.Dir())

	return watch.Watch(ctx, m.Dir(), opts, func(changes []watch.Change) error {
		adds, removes := watch.Partition(changes)

		c.Writef("Detected <info>%d</info> changed and <info>%d</info> removed files\n", len(adds), len(removes))

		e.Cache.ClearAll()
		e.Cache.ClearCompiled()

		rebuild()

		return nil
	})
}

func functionNames(c *stdcli.Context, m *manifest.Manifest) []string {
	if len(c.Args) > 0 {
		return c.Args
	}

	return m.Names()
}

func (e *Engine) bundle(c *stdcli.Context, m *manifest.Manifest, name, out string, pw *prefix.Writer) (*asset.Asset, error) {
	opts, err := functionOptions(c, m, name)
	if err != nil {
		return nil, err
	}

	w := pw.Writer(name)
	defer w.Flush()

	opts.Output = w

	b, err := bundle.New(opts)
	if err != nil {
		return nil, err
	}

	b.Exec = e.Exec
	b.Cache = e.Cache
	b.Images = e.Images

	c.Startf("Bundling <id>%s</id>", name)

	start := time.Now()

	a, err := b.Bundle(out)
	if err != nil {
		return nil, err
	}

	size, err := helpers.DirSize(a.Path)
	if err != nil {
		return nil, err
	}

	c.Writef("<ok>OK</ok>, <id>%s</id> (%s, %s, %s)\n", a.Path, a.Strategy, helpers.Size(size), helpers.Elapsed(start, time.Now()))

	if opts.Metafile {
		path := filepath.Join(a.Path, command.MetafileName)

		if helpers.FileExists(path) {
			mf, err := metafile.Load(path)
			if err != nil {
				return nil, err
			}

			mf.Analyze().Report(c, 5)
		}
	}

	return a, nil
}
