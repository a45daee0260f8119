package strategy

import (
	"fmt"

	"github.com/convox/bundle/pkg/detect"
	"github.com/convox/bundle/pkg/structs"
)

// SupportedMajor is the only esbuild major version bundled locally.
const SupportedMajor = "0"

// Decision is the execution environment chosen for one bundling attempt.
type Decision struct {
	Local    bool
	Fallback bool
	Reason   string
}

func (d Decision) String() string {
	switch {
	case d.Local && d.Fallback:
		return "local (container fallback)"
	case d.Local:
		return "local"
	default:
		return "container"
	}
}

// Decide chooses between local and container execution from the request
// flags and the detected esbuild and tsc installations. It runs nothing.
func Decide(opts structs.BundleOptions, esbuild, tsc *structs.ToolInstallation) (Decision, error) {
	container := func(reason string) (Decision, error) {
		return Decision{Reason: reason}, nil
	}

	if opts.ForceDockerBundling {
		return container("docker bundling forced")
	}

	if !esbuild.Found() {
		if opts.ForceLocalBundling {
			return Decision{}, structs.ConfigErrorf("force_local_bundling", "esbuild cannot be found, install it to bundle locally")
		}
		return container("esbuild cannot be found")
	}

	if major := detect.Major(esbuild.Version); major != SupportedMajor {
		if opts.ForceLocalBundling {
			return Decision{}, &structs.IncompatibleVersionError{Tool: "esbuild", Expected: SupportedMajor, Actual: esbuild.Version}
		}
		return container(fmt.Sprintf("expected esbuild version %s.x but got %s", SupportedMajor, esbuild.Version))
	}

	if opts.PreCompilation && !tsc.Found() {
		if opts.ForceLocalBundling {
			return Decision{}, structs.ConfigErrorf("force_local_bundling", "tsc cannot be found, install typescript to pre-compile locally")
		}
		return container("tsc cannot be found")
	}

	return Decision{Local: true, Fallback: !opts.ForceLocalBundling, Reason: fmt.Sprintf("esbuild %s", esbuild.Version)}, nil
}
