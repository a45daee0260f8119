package bundle

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/convox/bundle/pkg/asset"
	"github.com/convox/bundle/pkg/command"
	"github.com/convox/bundle/pkg/detect"
	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/lockfile"
	"github.com/convox/bundle/pkg/strategy"
	"github.com/convox/bundle/pkg/structs"
	"github.com/convox/exec"
	"github.com/convox/logger"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	// DefaultCache is shared by bundlers that are not given their own cache.
	DefaultCache = detect.Default

	entryExtensions = []string{".js", ".mjs", ".jsx", ".ts", ".tsx"}

	log = logger.New("ns=bundle")

	warn = color.New(color.FgYellow)
)

// Bundler bundles a single entry point. It is safe to call Bundle more than
// once; probes and pre-compilations are shared through Cache and bundling
// images through Images.
type Bundler struct {
	structs.BundleOptions

	Exec   exec.Interface
	Cache  *detect.Cache
	Images *strategy.Images

	manager lockfile.PackageManager
	runner  *strategy.Runner
	logs    bytes.Buffer
	writer  io.Writer
}

// New resolves the paths of opts and validates the request. Nothing is
// executed until Bundle is called.
func New(opts structs.BundleOptions) (*Bundler, error) {
	opts = opts.WithDefaults()

	if err := resolve(&opts); err != nil {
		return nil, err
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	pm, err := lockfile.FromPath(opts.DepsLockFilePath)
	if err != nil {
		return nil, err
	}

	b := &Bundler{
		BundleOptions: opts,
		Exec:          &exec.Exec{},
		Cache:         DefaultCache,
		Images:        strategy.NewImages(),
		manager:       pm,
	}

	if opts.Output != nil {
		b.writer = io.MultiWriter(opts.Output, &b.logs)
	} else {
		b.writer = io.MultiWriter(os.Stderr, &b.logs)
	}

	return b, nil
}

func resolve(opts *structs.BundleOptions) error {
	if opts.Entry == "" {
		return structs.ConfigErrorf("entry", "entry is required")
	}

	entry, err := filepath.Abs(opts.Entry)
	if err != nil {
		return errors.WithStack(err)
	}

	opts.Entry = entry

	ext := filepath.Ext(entry)

	if !lo.Contains(entryExtensions, ext) {
		return structs.ConfigErrorf("entry", "only JavaScript or TypeScript entry files are supported: %s", entry)
	}

	if opts.PreCompilation && ext != ".ts" && ext != ".tsx" {
		return structs.ConfigErrorf("pre_compilation", "preCompilation can only be used with typescript files")
	}

	if !helpers.FileExists(entry) {
		return structs.ConfigErrorf("entry", "cannot find entry file at %s", entry)
	}

	if opts.DepsLockFilePath != "" {
		lock, err := filepath.Abs(opts.DepsLockFilePath)
		if err != nil {
			return errors.WithStack(err)
		}

		fi, err := os.Stat(lock)
		if err != nil {
			return structs.ConfigErrorf("deps_lock_file_path", "lock file at %s doesn't exist", lock)
		}
		if fi.IsDir() {
			return structs.ConfigErrorf("deps_lock_file_path", "%s is a directory, depsLockFilePath must point to a file", lock)
		}

		opts.DepsLockFilePath = lock
	} else {
		lock, err := lockfile.Find(filepath.Dir(entry))
		if err != nil {
			return err
		}

		opts.DepsLockFilePath = lock
	}

	root := helpers.CoalesceString(opts.ProjectRoot, filepath.Dir(opts.DepsLockFilePath))

	if root, err = filepath.Abs(root); err != nil {
		return errors.WithStack(err)
	}

	opts.ProjectRoot = root

	if !helpers.Within(root, entry) {
		return structs.ConfigErrorf("project_root", "entry %s must be located inside the project root %s", entry, root)
	}

	if !helpers.Within(root, opts.DepsLockFilePath) {
		return structs.ConfigErrorf("project_root", "lock file %s must be located inside the project root %s", opts.DepsLockFilePath, root)
	}

	if opts.Tsconfig != "" {
		tsconfig, err := filepath.Abs(opts.Tsconfig)
		if err != nil {
			return errors.WithStack(err)
		}

		if !helpers.Within(root, tsconfig) {
			return structs.ConfigErrorf("tsconfig", "tsconfig %s must be located inside the project root %s", tsconfig, root)
		}

		opts.Tsconfig = tsconfig
	}

	return nil
}

// Bundle runs the bundling commands and stages the result in outdir as
// asset.<hash>.
func (b *Bundler) Bundle(outdir string) (*asset.Asset, error) {
	log := log.At("bundle").Namespace("entry=%q", b.Entry).Start()

	esbuild := b.Cache.Detect(detect.Esbuild, b.ProjectRoot)

	var tsc *structs.ToolInstallation

	if b.PreCompilation {
		tsc = b.Cache.Detect(detect.Tsc, b.ProjectRoot)
	}

	d, err := strategy.Decide(b.BundleOptions, esbuild, tsc)
	if err != nil {
		return nil, log.Error(err)
	}

	log.Logf("decision=%q reason=%q", d.String(), d.Reason)

	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, log.Error(errors.WithStack(err))
	}

	scratch, err := os.MkdirTemp(outdir, "bundling-temp-")
	if err != nil {
		return nil, log.Error(errors.WithStack(err))
	}

	used, err := b.execute(d, esbuild, tsc, scratch)
	if err != nil {
		os.RemoveAll(scratch)
		return nil, log.Error(err)
	}

	a, err := asset.Stage(scratch, outdir, b.AssetHash)
	if err != nil {
		os.RemoveAll(scratch)
		return nil, log.Error(err)
	}

	a.Strategy = used

	log.Successf("strategy=%s asset=%q", used, a.Path)

	return a, nil
}

func (b *Bundler) execute(d strategy.Decision, esbuild, tsc *structs.ToolInstallation, scratch string) (string, error) {
	if d.Local {
		ok, err := b.local(esbuild, tsc, scratch)
		if err != nil {
			return "", err
		}

		if ok {
			return "local", nil
		}

		if !d.Fallback {
			return "", &structs.ExecutionError{Command: "local bundling", Output: b.logs.String(), Err: errors.New("local bundling failed")}
		}

		warn.Fprintf(b.writer, "Local bundling failed, falling back to docker bundling\n")

		if err := emptyDir(scratch); err != nil {
			return "", err
		}
	} else if !b.ForceDockerBundling {
		warn.Fprintf(b.writer, "Bundling with docker: %s\n", d.Reason)
	}

	if err := b.container(scratch); err != nil {
		return "", err
	}

	return "container", nil
}

func (b *Bundler) local(esbuild, tsc *structs.ToolInstallation, scratch string) (bool, error) {
	paths := command.Paths{
		InputDir:      b.ProjectRoot,
		OutputDir:     scratch,
		EsbuildRunner: b.manager.RunBin("esbuild", esbuild.IsLocal),
		TscRunner:     b.manager.RunBin("tsc", tsc != nil && tsc.IsLocal),
		HostOS:        runtime.GOOS,
		TargetOS:      runtime.GOOS,
	}

	plan, err := command.Build(b.BundleOptions, paths, b.Cache)
	if err != nil {
		return false, err
	}

	ok, err := b.Runner().RunLocal(strategy.LocalPlan{
		Dir:     plan.Dir,
		Env:     plan.Env,
		Command: plan.String(),
		OS:      runtime.GOOS,
	})
	if err != nil {
		return false, err
	}

	if ok && plan.Tsconfig != "" {
		b.Cache.MarkCompiled(plan.Tsconfig)
	}

	return ok, nil
}

func (b *Bundler) container(scratch string) error {
	paths := command.Paths{
		InputDir:  strategy.InputDir,
		OutputDir: strategy.OutputDir,
		HostOS:    runtime.GOOS,
		TargetOS:  "linux",
	}

	plan, err := command.Build(b.BundleOptions, paths, b.Cache)
	if err != nil {
		return err
	}

	input := "ro"
	if plan.Tsconfig != "" {
		input = "delegated"
	}

	args := helpers.MergeEnv(b.BuildArgs)
	if b.EsbuildVersion != "" {
		args["ESBUILD_VERSION"] = b.EsbuildVersion
	}

	p := strategy.ContainerPlan{
		Image:     b.DockerImage,
		BaseImage: b.Runtime.BundlingImage,
		BuildArgs: args,
		Platform:  b.Architecture.DockerPlatform,
		Volumes: []strategy.Volume{
			{Host: b.ProjectRoot, Container: strategy.InputDir, Consistency: input},
			{Host: scratch, Container: strategy.OutputDir, Consistency: "delegated"},
		},
		Env:     plan.Env,
		Workdir: "/",
		Command: plan.String(),
	}

	if err := b.Runner().RunContainer(p); err != nil {
		return err
	}

	if plan.Tsconfig != "" {
		b.Cache.MarkCompiled(plan.Tsconfig)
	}

	return nil
}

// Runner is created on first use so tests can swap Exec after New.
func (b *Bundler) Runner() *strategy.Runner {
	if b.runner == nil {
		b.runner = strategy.NewRunner(b.Exec, b.writer)
		b.runner.Images = b.Images
	}

	return b.runner
}

// Logs is everything bundling commands wrote so far.
func (b *Bundler) Logs() string {
	return b.logs.String()
}

// ClearCaches forgets detected tools and completed pre-compilations.
func (b *Bundler) ClearCaches() {
	b.Cache.ClearAll()
	b.Cache.ClearCompiled()
}

// ClearCaches resets DefaultCache.
func ClearCaches() {
	DefaultCache.ClearAll()
	DefaultCache.ClearCompiled()
}

func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}
