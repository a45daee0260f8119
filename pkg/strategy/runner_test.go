package strategy_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/convox/bundle/pkg/strategy"
	"github.com/convox/bundle/pkg/structs"
	"github.com/convox/exec"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunLocal(t *testing.T) {
	testRunner(t, func(r *strategy.Runner, e *exec.MockInterface, out *bytes.Buffer) {
		e.On("Run", mock.Anything, "env", "A=1", "B=2", "bash", "-c", "cd /project && esbuild --bundle x").Return(nil).Run(func(args mock.Arguments) {
			fmt.Fprintf(args.Get(0).(io.Writer), "bundled\n")
		})

		ok, err := r.Run(strategy.LocalPlan{Dir: "/project", Env: map[string]string{"B": "2", "A": "1"}, Command: "esbuild --bundle x"})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "bundled\n", out.String())
	})
}

func TestRunLocalFailure(t *testing.T) {
	testRunner(t, func(r *strategy.Runner, e *exec.MockInterface, out *bytes.Buffer) {
		e.On("Run", mock.Anything, "bash", "-c", "cd '/my project' && esbuild").Return(errors.New("exit status 1"))

		ok, err := r.RunLocal(strategy.LocalPlan{Dir: "/my project", Command: "esbuild"})
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestLocalArgsWindows(t *testing.T) {
	cmd, args := strategy.LocalArgs(strategy.LocalPlan{OS: "windows", Dir: `C:\project`, Env: map[string]string{"A": "1"}, Command: "esbuild"})
	require.Equal(t, "cmd", cmd)
	require.Equal(t, []string{"/c", `set "A=1" && cd /d "C:\project" && esbuild`}, args)
}

func TestRunContainerImage(t *testing.T) {
	testRunner(t, func(r *strategy.Runner, e *exec.MockInterface, out *bytes.Buffer) {
		e.On("Run", mock.Anything, "docker", "run", "--rm", "--platform", "linux/arm64", "-u", "1000:1000",
			"-v", "/project:/asset-input:ro", "-v", "/out:/asset-output:delegated",
			"--env", "NODE_ENV=production", "-w", "/",
			"node:14", "bash", "-c", "esbuild --bundle").Return(nil)

		err := r.RunContainer(fxContainerPlan("node:14"))
		require.NoError(t, err)

		e.AssertNumberOfCalls(t, "Run", 1)
	})
}

func TestRunContainerBuild(t *testing.T) {
	testRunner(t, func(r *strategy.Runner, e *exec.MockInterface, out *bytes.Buffer) {
		p := fxContainerPlan("")
		p.BuildArgs = map[string]string{"HTTPS_PROXY": "proxy", "ESBUILD_VERSION": "0.14.0", "IMAGE": "ignored"}

		args := strategy.BuildArgs(p)
		require.Equal(t, []string{"IMAGE=public.ecr.aws/sam/build-nodejs14.x", "ESBUILD_VERSION=0.14.0", "HTTPS_PROXY=proxy"}, args)

		tag := strategy.ImageTag(args, "linux/arm64")
		require.Len(t, tag, 39)
		require.Regexp(t, `^bundle-[0-9a-f]{32}$`, tag)

		e.On("Run", mock.Anything, "docker", "build", "-t", tag,
			"--build-arg", "IMAGE=public.ecr.aws/sam/build-nodejs14.x",
			"--build-arg", "ESBUILD_VERSION=0.14.0",
			"--build-arg", "HTTPS_PROXY=proxy",
			"--platform", "linux/arm64", mock.AnythingOfType("string")).Return(nil).Once()
		e.On("Run", mock.Anything, "docker", "run", "--rm", "--platform", "linux/arm64", "-u", "1000:1000",
			"-v", "/project:/asset-input:ro", "-v", "/out:/asset-output:delegated",
			"--env", "NODE_ENV=production", "-w", "/",
			tag, "bash", "-c", "esbuild --bundle").Return(nil).Twice()

		require.NoError(t, r.RunContainer(p))
		require.NoError(t, r.RunContainer(p))

		e.AssertExpectations(t)
	})
}

func TestRunContainerSharedImages(t *testing.T) {
	testRunner(t, func(r *strategy.Runner, e *exec.MockInterface, out *bytes.Buffer) {
		p := fxContainerPlan("")
		tag := strategy.ImageTag(strategy.BuildArgs(p), "linux/arm64")

		e.On("Run", mock.Anything, "docker", "build", "-t", tag,
			"--build-arg", "IMAGE=public.ecr.aws/sam/build-nodejs14.x",
			"--build-arg", "ESBUILD_VERSION="+strategy.SupportedMajor,
			"--platform", "linux/arm64", mock.AnythingOfType("string")).Return(nil).Once()
		e.On("Run", mock.Anything, "docker", "run", "--rm", "--platform", "linux/arm64", "-u", "1000:1000",
			"-v", "/project:/asset-input:ro", "-v", "/out:/asset-output:delegated",
			"--env", "NODE_ENV=production", "-w", "/",
			tag, "bash", "-c", "esbuild --bundle").Return(nil).Twice()

		other := strategy.NewRunner(e, &bytes.Buffer{})
		other.User = "1000:1000"
		other.Images = r.Images

		require.NoError(t, r.RunContainer(p))
		require.NoError(t, other.RunContainer(p))

		e.AssertExpectations(t)
	})
}

func TestRunContainerFailure(t *testing.T) {
	testRunner(t, func(r *strategy.Runner, e *exec.MockInterface, out *bytes.Buffer) {
		e.On("Run", mock.Anything, "docker", "run", "--rm", "--platform", "linux/arm64", "-u", "1000:1000",
			"-v", "/project:/asset-input:ro", "-v", "/out:/asset-output:delegated",
			"--env", "NODE_ENV=production", "-w", "/",
			"node:14", "bash", "-c", "esbuild --bundle").Return(errors.New("exit status 1")).Run(func(args mock.Arguments) {
			fmt.Fprintf(args.Get(0).(io.Writer), "✘ [ERROR] Could not resolve \"missing\"\n")
		})

		err := r.RunContainer(fxContainerPlan("node:14"))
		require.Error(t, err)
		require.True(t, structs.IsExecutionError(err))

		eerr := err.(*structs.ExecutionError)
		require.Equal(t, "esbuild --bundle", eerr.Command)
		require.Contains(t, eerr.Output, "Could not resolve")
		require.Contains(t, out.String(), "Could not resolve")
	})
}

func TestRunContainerInvalidImage(t *testing.T) {
	testRunner(t, func(r *strategy.Runner, e *exec.MockInterface, out *bytes.Buffer) {
		err := r.RunContainer(fxContainerPlan("Invalid Image!"))
		require.Error(t, err)
		require.True(t, structs.IsConfigError(err))

		e.AssertNotCalled(t, "Run")
	})
}

func TestVolumeString(t *testing.T) {
	v := strategy.Volume{Host: "/project", Container: strategy.InputDir, Consistency: "ro"}
	require.Equal(t, "/project:/asset-input:ro", v.String())
}

func fxContainerPlan(image string) strategy.ContainerPlan {
	return strategy.ContainerPlan{
		Image:     image,
		BaseImage: structs.RuntimeNodejs14.BundlingImage,
		Platform:  "linux/arm64",
		Volumes: []strategy.Volume{
			{Host: "/project", Container: strategy.InputDir, Consistency: "ro"},
			{Host: "/out", Container: strategy.OutputDir, Consistency: "delegated"},
		},
		Env:     map[string]string{"NODE_ENV": "production"},
		Workdir: "/",
		Command: "esbuild --bundle",
	}
}

func testRunner(t *testing.T, fn func(*strategy.Runner, *exec.MockInterface, *bytes.Buffer)) {
	e := &exec.MockInterface{}
	out := &bytes.Buffer{}

	r := strategy.NewRunner(e, out)
	r.User = "1000:1000"

	fn(r, e, out)
}
