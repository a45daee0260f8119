package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/convox/bundle/pkg/structs"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

const (
	DefaultFile   = "bundle.yml"
	DefaultOutput = ".bundle"
)

// Manifest lists the functions of a project and the options they share.
type Manifest struct {
	Output    string              `yaml:"output,omitempty"`
	Defaults  Function            `yaml:"defaults,omitempty"`
	Functions map[string]Function `yaml:"-"`

	dir string
}

type Function struct {
	Name string `yaml:"-"`

	Entry        string `yaml:"entry,omitempty"`
	ProjectRoot  string `yaml:"project_root,omitempty"`
	LockFile     string `yaml:"lock_file,omitempty"`
	Runtime      string `yaml:"runtime,omitempty"`
	Architecture string `yaml:"architecture,omitempty"`

	Minify          bool              `yaml:"minify,omitempty"`
	SourceMap       *bool             `yaml:"source_map,omitempty"`
	SourceMapMode   string            `yaml:"source_map_mode,omitempty"`
	Target          string            `yaml:"target,omitempty"`
	Loader          map[string]string `yaml:"loader,omitempty"`
	LogLevel        string            `yaml:"log_level,omitempty"`
	KeepNames       bool              `yaml:"keep_names,omitempty"`
	Tsconfig        string            `yaml:"tsconfig,omitempty"`
	Metafile        bool              `yaml:"metafile,omitempty"`
	Banner          string            `yaml:"banner,omitempty"`
	Footer          string            `yaml:"footer,omitempty"`
	Charset         string            `yaml:"charset,omitempty"`
	Environment     map[string]string `yaml:"environment,omitempty"`
	Define          map[string]string `yaml:"define,omitempty"`
	ExternalModules []string          `yaml:"external_modules,omitempty"`
	NodeModules     []string          `yaml:"node_modules,omitempty"`

	EsbuildVersion      string            `yaml:"esbuild_version,omitempty"`
	BuildArgs           map[string]string `yaml:"build_args,omitempty"`
	ForceDockerBundling bool              `yaml:"force_docker_bundling,omitempty"`
	ForceLocalBundling  bool              `yaml:"force_local_bundling,omitempty"`
	PreCompilation      bool              `yaml:"pre_compilation,omitempty"`
	DockerImage         string            `yaml:"docker_image,omitempty"`
	AssetHash           string            `yaml:"asset_hash,omitempty"`
	Hooks               Hooks             `yaml:"hooks,omitempty"`
}

type Hooks struct {
	BeforeBundling []string `yaml:"before_bundling,omitempty"`
	BeforeInstall  []string `yaml:"before_install,omitempty"`
	AfterBundling  []string `yaml:"after_bundling,omitempty"`
}

// LoadFile reads a manifest from disk. Relative paths inside it are resolved
// against its directory.
func LoadFile(path string, env map[string]string) (*Manifest, error) {
	p, err := expandPath(".", path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return Load(data, filepath.Dir(p), env)
}

// Load parses manifest data, interpolating ${VAR} references from env. Each
// function starts from the defaults and overrides what it sets.
func Load(data []byte, dir string, env map[string]string) (*Manifest, error) {
	var m Manifest

	p := interpolate(data, env)

	if err := yaml.Unmarshal(p, &m); err != nil {
		return nil, errors.Wrap(err, "invalid manifest")
	}

	var raw struct {
		Functions map[string]interface{} `yaml:"functions"`
	}

	if err := yaml.Unmarshal(p, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid manifest")
	}

	defaults, err := yaml.Marshal(m.Defaults)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	m.dir = dir
	m.Functions = map[string]Function{}

	for name, body := range raw.Functions {
		data, err := yaml.Marshal(body)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		var f Function

		// a fresh copy per function so maps in the defaults are never shared
		if err := yaml.Unmarshal(defaults, &f); err != nil {
			return nil, errors.WithStack(err)
		}

		// an empty list is dropped by the round trip but still means no externals
		if m.Defaults.ExternalModules != nil {
			f.ExternalModules = append([]string{}, m.Defaults.ExternalModules...)
		}

		if err := yaml.UnmarshalStrict(data, &f); err != nil {
			return nil, errors.Wrapf(err, "invalid function %s", name)
		}

		f.Name = name

		m.Functions[name] = f
	}

	if m.Output == "" {
		m.Output = DefaultOutput
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) Validate() error {
	if len(m.Functions) == 0 {
		return errors.New("manifest has no functions")
	}

	for _, name := range m.Names() {
		if m.Functions[name].Entry == "" {
			return structs.ConfigErrorf("entry", "function %s has no entry", name)
		}
	}

	return nil
}

// Names are the function names in lexical order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Functions))

	for name := range m.Functions {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (m *Manifest) Function(name string) (Function, error) {
	f, ok := m.Functions[name]
	if !ok {
		return Function{}, errors.Errorf("no such function: %s (available: %s)", name, strings.Join(m.Names(), ", "))
	}

	return f, nil
}

// Dir is the directory the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}

// OutputDir is the absolute directory assets are staged in.
func (m *Manifest) OutputDir() (string, error) {
	return expandPath(m.dir, m.Output)
}

// Options converts a function into bundle options with absolute paths.
func (m *Manifest) Options(name string) (structs.BundleOptions, error) {
	f, err := m.Function(name)
	if err != nil {
		return structs.BundleOptions{}, err
	}

	return f.Options(m.dir)
}

func (f Function) Options(dir string) (structs.BundleOptions, error) {
	opts := structs.BundleOptions{
		Minify:              f.Minify,
		SourceMap:           f.SourceMap,
		SourceMapMode:       structs.SourceMapMode(f.SourceMapMode),
		Target:              f.Target,
		Loader:              f.Loader,
		LogLevel:            structs.LogLevel(f.LogLevel),
		KeepNames:           f.KeepNames,
		Metafile:            f.Metafile,
		Banner:              f.Banner,
		Footer:              f.Footer,
		Charset:             structs.Charset(f.Charset),
		Environment:         f.Environment,
		Define:              f.Define,
		ExternalModules:     f.ExternalModules,
		NodeModules:         f.NodeModules,
		EsbuildVersion:      f.EsbuildVersion,
		BuildArgs:           f.BuildArgs,
		ForceDockerBundling: f.ForceDockerBundling,
		ForceLocalBundling:  f.ForceLocalBundling,
		PreCompilation:      f.PreCompilation,
		DockerImage:         f.DockerImage,
		AssetHash:           f.AssetHash,
	}

	paths := []struct {
		from string
		to   *string
	}{
		{f.Entry, &opts.Entry},
		{f.ProjectRoot, &opts.ProjectRoot},
		{f.LockFile, &opts.DepsLockFilePath},
		{f.Tsconfig, &opts.Tsconfig},
	}

	for _, p := range paths {
		v, err := expandPath(dir, p.from)
		if err != nil {
			return structs.BundleOptions{}, errors.WithStack(err)
		}

		*p.to = v
	}

	if f.Runtime != "" {
		r, err := structs.RuntimeFromName(f.Runtime)
		if err != nil {
			return structs.BundleOptions{}, err
		}
		opts.Runtime = r
	}

	if f.Architecture != "" {
		a, err := structs.ArchitectureFromName(f.Architecture)
		if err != nil {
			return structs.BundleOptions{}, err
		}
		opts.Architecture = a
	}

	h := f.Hooks

	if len(h.BeforeBundling)+len(h.BeforeInstall)+len(h.AfterBundling) > 0 {
		opts.CommandHooks = structs.ShellHooks{Before: h.BeforeBundling, Install: h.BeforeInstall, After: h.AfterBundling}
	}

	return opts, nil
}
