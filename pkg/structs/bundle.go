package structs

import (
	"fmt"
	"io"

	"github.com/convox/bundle/pkg/helpers"
)

type SourceMapMode string

const (
	SourceMapDefault  SourceMapMode = "default"
	SourceMapExternal SourceMapMode = "external"
	SourceMapInline   SourceMapMode = "inline"
	SourceMapBoth     SourceMapMode = "both"
)

type Charset string

const (
	CharsetASCII Charset = "ascii"
	CharsetUTF8  Charset = "utf8"
)

type LogLevel string

const (
	LogLevelVerbose LogLevel = "verbose"
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSilent  LogLevel = "silent"
)

// BundleOptions describes a single Lambda asset to bundle with esbuild.
// Paths may be relative until the bundler resolves them.
type BundleOptions struct {
	Entry            string
	ProjectRoot      string
	DepsLockFilePath string
	Runtime          Runtime
	Architecture     Architecture

	Minify        bool
	SourceMap     *bool
	SourceMapMode SourceMapMode
	Target        string
	Loader        map[string]string
	LogLevel      LogLevel
	KeepNames     bool
	Tsconfig      string
	Metafile      bool
	Banner        string
	Footer        string
	Charset       Charset
	Environment   map[string]string
	Define        map[string]string

	// ExternalModules defaults to aws-sdk when nil; an empty slice bundles everything.
	ExternalModules []string
	NodeModules     []string

	EsbuildVersion      string
	BuildArgs           map[string]string
	ForceDockerBundling bool
	ForceLocalBundling  bool
	PreCompilation      bool
	DockerImage         string
	CommandHooks        CommandHooks
	AssetHash           string

	Output io.Writer
}

// WithDefaults returns a copy with the runtime and architecture filled in.
func (o BundleOptions) WithDefaults() BundleOptions {
	if o.Runtime.Name == "" {
		o.Runtime = DefaultRuntime
	}

	if o.Architecture.Name == "" {
		o.Architecture = DefaultArchitecture
	}

	return o
}

// SourceMapEnabled reports whether esbuild should emit a source map.
func (o BundleOptions) SourceMapEnabled() bool {
	if o.SourceMapMode != "" {
		return true
	}

	return helpers.DefaultBool(o.SourceMap, false)
}

func (o BundleOptions) Validate() error {
	if o.Entry == "" {
		return ConfigErrorf("entry", "entry is required")
	}

	if o.SourceMap != nil && !*o.SourceMap && o.SourceMapMode != "" {
		return ConfigErrorf("source_map_mode", "sourceMapMode cannot be used when sourceMap is false")
	}

	switch o.SourceMapMode {
	case "", SourceMapDefault, SourceMapExternal, SourceMapInline, SourceMapBoth:
	default:
		return ConfigErrorf("source_map_mode", "invalid source map mode: %s", o.SourceMapMode)
	}

	switch o.Charset {
	case "", CharsetASCII, CharsetUTF8:
	default:
		return ConfigErrorf("charset", "invalid charset: %s", o.Charset)
	}

	switch o.LogLevel {
	case "", LogLevelVerbose, LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelSilent:
	default:
		return ConfigErrorf("log_level", "invalid log level: %s", o.LogLevel)
	}

	if o.ForceDockerBundling && o.ForceLocalBundling {
		return ConfigErrorf("force_local_bundling", "forceLocalBundling cannot be combined with forceDockerBundling")
	}

	if o.ForceLocalBundling && o.DockerImage != "" {
		return ConfigErrorf("docker_image", "dockerImage cannot be used when forceLocalBundling is set")
	}

	if o.Runtime.Name != "" {
		if _, err := o.Runtime.Target(); err != nil {
			return err
		}
	}

	for k := range o.Loader {
		if k == "" || k[0] != '.' {
			return ConfigErrorf("loader", "loader extension must start with a dot: %q", k)
		}
	}

	return nil
}

func (o BundleOptions) String() string {
	return fmt.Sprintf("entry=%q runtime=%s architecture=%s", o.Entry, o.Runtime.Name, o.Architecture.Name)
}
