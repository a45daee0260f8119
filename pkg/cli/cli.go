package cli

import (
	"github.com/convox/bundle/pkg/bundle"
	"github.com/convox/bundle/pkg/detect"
	"github.com/convox/bundle/pkg/strategy"
	"github.com/convox/exec"
	"github.com/convox/stdcli"
)

type HandlerFunc func(*Engine, *stdcli.Context) error

var (
	flagFile    = stdcli.StringFlag("file", "f", "manifest file (default bundle.yml)")
	flagOutput  = stdcli.StringFlag("output", "o", "asset output directory")
	flagDocker  = stdcli.BoolFlag("force-docker", "", "always bundle in a container")
	flagLocal   = stdcli.BoolFlag("force-local", "", "never fall back to a container")
	flagImage   = stdcli.StringFlag("docker-image", "", "bundling image to use instead of building one")
	flagVersion = stdcli.StringFlag("esbuild-version", "", "esbuild version installed in the bundling image")
)

// Engine is the bundle command line. Exec, Cache and Images are shared by
// every bundler it creates.
type Engine struct {
	*stdcli.Engine
	Exec   exec.Interface
	Cache  *detect.Cache
	Images *strategy.Images
}

func New(name, version string) *Engine {
	e := &Engine{
		Engine: stdcli.New(name, version),
		Exec:   &exec.Exec{},
		Cache:  bundle.DefaultCache,
		Images: strategy.NewImages(),
	}

	e.RegisterCommands()

	return e
}

func (e *Engine) Command(cmd, description string, fn HandlerFunc, opts stdcli.CommandOptions) {
	wfn := func(c *stdcli.Context) error {
		return fn(e, c)
	}

	e.Engine.Command(cmd, description, wfn, opts)
}

func (e *Engine) RegisterCommands() {
	for _, c := range registrations {
		e.Command(c.Command, c.Description, c.Handler, c.Opts)
	}
}

var registrations = []registration{}

type registration struct {
	Command     string
	Description string
	Handler     HandlerFunc
	Opts        stdcli.CommandOptions
}

func register(cmd, description string, fn HandlerFunc, opts stdcli.CommandOptions) {
	registrations = append(registrations, registration{
		Command:     cmd,
		Description: description,
		Handler:     fn,
		Opts:        opts,
	})
}
