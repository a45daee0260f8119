package command

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/lockfile"
	"github.com/convox/bundle/pkg/structs"
	"github.com/samber/lo"
)

const (
	OutputFile   = "index.js"
	MetafileName = "index.meta.json"
	TsconfigName = "tsconfig.json"
)

var reTypescript = regexp.MustCompile(`\.ts(x?)$`)

// Command is an ordered list of shell tokens, each already escaped.
type Command []string

func (c Command) String() string {
	return strings.Join(c, " ")
}

// Plan is the chain of commands that produces a bundle.
type Plan struct {
	Commands []Command
	Dir      string
	Env      map[string]string

	// Tsconfig is the host path of the project compiled by this plan, if any.
	Tsconfig string
}

// String chains the commands so that the first failure stops the rest.
func (p *Plan) String() string {
	cmds := []string{}

	for _, c := range p.Commands {
		if s := strings.TrimSpace(c.String()); s != "" {
			cmds = append(cmds, s)
		}
	}

	return strings.Join(cmds, " && ")
}

// Paths are the directories and runners as seen by the shell that will run
// the plan. HostOS is the OS that resolved the request paths.
type Paths struct {
	InputDir      string
	OutputDir     string
	EsbuildRunner []string
	TscRunner     []string
	HostOS        string
	TargetOS      string
}

// Compilations reports projects that have already been pre-compiled.
type Compilations interface {
	Compiled(tsconfig string) bool
}

// Build renders the command plan for opts. Entry, ProjectRoot and
// DepsLockFilePath must be absolute host paths.
func Build(opts structs.BundleOptions, p Paths, compiled Compilations) (*Plan, error) {
	opts = opts.WithDefaults()

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	b := &builder{opts: opts, paths: p, windows: p.TargetOS == "windows"}

	if len(b.paths.EsbuildRunner) == 0 {
		b.paths.EsbuildRunner = []string{"esbuild"}
	}

	if len(b.paths.TscRunner) == 0 {
		b.paths.TscRunner = []string{"tsc"}
	}

	plan := &Plan{Dir: opts.ProjectRoot, Env: opts.Environment}

	entry, err := b.relative(opts.Entry)
	if err != nil {
		return nil, err
	}

	var tsc Command

	if opts.PreCompilation && reTypescript.MatchString(opts.Entry) {
		tsconfig, err := b.tsconfig()
		if err != nil {
			return nil, err
		}

		if compiled == nil || !compiled.Compiled(tsconfig) {
			rel, err := b.relative(tsconfig)
			if err != nil {
				return nil, err
			}

			tsc = append(Command{}, b.paths.TscRunner...)
			tsc = append(tsc, "--project", bare(b.join(b.paths.InputDir, rel), b.windows), "--rootDir", "./", "--outDir", "./")

			plan.Tsconfig = tsconfig
		}

		entry = reTypescript.ReplaceAllString(entry, ".js$1")
	}

	esbuild, err := b.esbuild(entry)
	if err != nil {
		return nil, err
	}

	var deps []Command

	if len(opts.NodeModules) > 0 {
		deps, err = b.install()
		if err != nil {
			return nil, err
		}
	}

	hooks := opts.CommandHooks
	if hooks == nil {
		hooks = structs.ShellHooks{}
	}

	plan.Commands = append(plan.Commands, raw(hooks.BeforeBundling(p.InputDir, p.OutputDir))...)
	plan.Commands = append(plan.Commands, tsc, esbuild)

	if len(opts.NodeModules) > 0 {
		plan.Commands = append(plan.Commands, raw(hooks.BeforeInstall(p.InputDir, p.OutputDir))...)
		plan.Commands = append(plan.Commands, deps...)
	}

	plan.Commands = append(plan.Commands, raw(hooks.AfterBundling(p.InputDir, p.OutputDir))...)

	plan.Commands = lo.Filter(plan.Commands, func(c Command, _ int) bool {
		return strings.TrimSpace(c.String()) != ""
	})

	return plan, nil
}

type builder struct {
	opts    structs.BundleOptions
	paths   Paths
	windows bool
}

func (b *builder) esbuild(entry string) (Command, error) {
	o := b.opts

	target := o.Target
	if target == "" {
		t, err := o.Runtime.Target()
		if err != nil {
			return nil, err
		}
		target = t
	}

	c := append(Command{}, b.paths.EsbuildRunner...)

	c = append(c,
		"--bundle", quoted(b.join(b.paths.InputDir, entry), b.windows),
		fmt.Sprintf("--target=%s", target),
		"--platform=node",
		fmt.Sprintf("--outfile=%s", quoted(b.join(b.paths.OutputDir, OutputFile), b.windows)),
	)

	if o.Minify {
		c = append(c, "--minify")
	}

	if o.SourceMapEnabled() {
		if o.SourceMapMode == "" || o.SourceMapMode == structs.SourceMapDefault {
			c = append(c, "--sourcemap")
		} else {
			c = append(c, fmt.Sprintf("--sourcemap=%s", o.SourceMapMode))
		}
	}

	for _, m := range Externals(o) {
		c = append(c, bare(fmt.Sprintf("--external:%s", m), b.windows))
	}

	for _, ext := range helpers.SortedKeys(o.Loader) {
		c = append(c, bare(fmt.Sprintf("--loader:%s=%s", ext, o.Loader[ext]), b.windows))
	}

	for _, k := range helpers.SortedKeys(o.Define) {
		c = append(c, fmt.Sprintf("--define:%s=%s", k, literal(o.Define[k], b.windows)))
	}

	if o.LogLevel != "" {
		c = append(c, fmt.Sprintf("--log-level=%s", o.LogLevel))
	}

	if o.KeepNames {
		c = append(c, "--keep-names")
	}

	if o.Tsconfig != "" {
		rel, err := b.relative(o.Tsconfig)
		if err != nil {
			return nil, err
		}

		c = append(c, bare(fmt.Sprintf("--tsconfig=%s", b.join(b.paths.InputDir, rel)), b.windows))
	}

	if o.Metafile {
		c = append(c, bare(fmt.Sprintf("--metafile=%s", b.join(b.paths.OutputDir, MetafileName)), b.windows))
	}

	if o.Banner != "" {
		c = append(c, fmt.Sprintf("--banner:js=%s", literal(o.Banner, b.windows)))
	}

	if o.Footer != "" {
		c = append(c, fmt.Sprintf("--footer:js=%s", literal(o.Footer, b.windows)))
	}

	if o.Charset != "" {
		c = append(c, fmt.Sprintf("--charset=%s", o.Charset))
	}

	return c, nil
}

func (b *builder) install() ([]Command, error) {
	o := b.opts

	if o.DepsLockFilePath == "" {
		return nil, structs.ConfigErrorf("deps_lock_file_path", "a dependency lock file is required to install nodeModules")
	}

	pm, err := lockfile.FromPath(o.DepsLockFilePath)
	if err != nil {
		return nil, err
	}

	pkg := helpers.FindUp("package.json", filepath.Dir(o.Entry), "")
	if pkg == "" {
		return nil, structs.ConfigErrorf("node_modules", "cannot find a package.json in this project, using nodeModules requires a package.json")
	}

	manifest, err := Manifest(pkg, o.NodeModules)
	if err != nil {
		return nil, err
	}

	lock, err := b.relative(o.DepsLockFilePath)
	if err != nil {
		return nil, err
	}

	out := b.paths.OutputDir

	cmds := []Command{}

	if b.windows {
		cmds = append(cmds,
			Command{"echo", "^" + string(manifest) + "^", ">", bare(b.join(out, "package.json"), true)},
			Command{"copy", bare(b.join(b.paths.InputDir, lock), true), bare(b.join(out, pm.LockFile), true)},
			Command{"cd", bare(out, true)},
		)
	} else {
		cmds = append(cmds,
			Command{"echo", bare(string(manifest), false), ">", bare(b.join(out, "package.json"), false)},
			Command{"cp", bare(b.join(b.paths.InputDir, lock), false), bare(b.join(out, pm.LockFile), false)},
			Command{"cd", bare(out, false)},
		)
	}

	cmds = append(cmds, Command(pm.InstallCommand))

	return cmds, nil
}

// tsconfig is the explicit tsconfig or the nearest one between the entry
// directory and the project root.
func (b *builder) tsconfig() (string, error) {
	if b.opts.Tsconfig != "" {
		return b.opts.Tsconfig, nil
	}

	found := helpers.FindUp(TsconfigName, filepath.Dir(b.opts.Entry), b.opts.ProjectRoot)
	if found == "" {
		return "", structs.ConfigErrorf("tsconfig", "cannot find a tsconfig.json, please specify the prop: tsconfig")
	}

	return found, nil
}

// relative is the path of p inside the project root, in target separators.
func (b *builder) relative(p string) (string, error) {
	rel, err := filepath.Rel(b.opts.ProjectRoot, p)
	if err != nil {
		return "", structs.ConfigErrorf("project_root", "%s is not inside the project root %s", p, b.opts.ProjectRoot)
	}

	return TargetPath(rel, b.paths.HostOS, b.paths.TargetOS), nil
}

func (b *builder) join(base, rel string) string {
	if b.windows {
		return strings.TrimRight(base, `\`) + `\` + strings.ReplaceAll(rel, "/", `\`)
	}

	return path.Join(base, rel)
}

// TargetPath converts a relative path computed on hostOS into the separators
// of targetOS.
func TargetPath(rel, hostOS, targetOS string) string {
	if hostOS == "windows" && targetOS != "windows" {
		return strings.ReplaceAll(rel, `\`, "/")
	}

	return rel
}

// Externals are the modules left out of the bundle: the external modules
// (aws-sdk unless set) followed by the modules to install.
func Externals(o structs.BundleOptions) []string {
	externals := o.ExternalModules
	if externals == nil {
		externals = []string{"aws-sdk"}
	}

	return append(append([]string{}, externals...), o.NodeModules...)
}

func raw(cmds []string) []Command {
	out := make([]Command, 0, len(cmds))

	for _, c := range cmds {
		out = append(out, Command{c})
	}

	return out
}
