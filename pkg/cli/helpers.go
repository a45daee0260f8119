package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/manifest"
	"github.com/convox/bundle/pkg/structs"
	"github.com/convox/stdcli"
	"github.com/pkg/errors"
)

func loadManifest(c *stdcli.Context) (*manifest.Manifest, error) {
	return manifest.LoadFile(helpers.CoalesceString(c.String("file"), manifest.DefaultFile), environ())
}

func environ() map[string]string {
	env := map[string]string{}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	return env
}

// functionOptions layers BUNDLE_* environment variables and then flags over
// the manifest options for a function.
func functionOptions(c *stdcli.Context, m *manifest.Manifest, name string) (structs.BundleOptions, error) {
	opts, err := m.Options(name)
	if err != nil {
		return structs.BundleOptions{}, err
	}

	if v := os.Getenv("BUNDLE_FORCE_DOCKER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return structs.BundleOptions{}, errors.Errorf("invalid BUNDLE_FORCE_DOCKER: %s", v)
		}
		opts.ForceDockerBundling = b
	}

	if v := os.Getenv("BUNDLE_DOCKER_IMAGE"); v != "" {
		opts.DockerImage = v
	}

	if v := os.Getenv("BUNDLE_ESBUILD_VERSION"); v != "" {
		opts.EsbuildVersion = v
	}

	if c.Bool("force-docker") {
		opts.ForceDockerBundling = true
	}

	if c.Bool("force-local") {
		opts.ForceLocalBundling = true
	}

	if v := c.String("docker-image"); v != "" {
		opts.DockerImage = v
	}

	if v := c.String("esbuild-version"); v != "" {
		opts.EsbuildVersion = v
	}

	return opts, nil
}

func outputDir(c *stdcli.Context, m *manifest.Manifest) (string, error) {
	if v := c.String("output"); v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return abs, nil
	}

	return m.OutputDir()
}
