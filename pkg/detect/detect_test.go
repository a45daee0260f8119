package detect_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/convox/bundle/pkg/detect"
	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/exec"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDetectLocal(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "esbuild", "0.14.2")

	e := &exec.MockInterface{}
	c := detect.New(e)

	ti := c.Detect(detect.Esbuild, filepath.Join(root, "lib"))
	require.NotNil(t, ti)
	require.True(t, ti.IsLocal)
	require.Equal(t, "0.14.2", ti.Version)

	e.AssertNotCalled(t, "Execute", "esbuild", "--version")
}

func TestDetectGlobal(t *testing.T) {
	e := &exec.MockInterface{}
	e.On("Execute", "tsc", "--version").Return([]byte("Version 4.5.2\n"), nil).Once()

	c := detect.New(e)

	ti := c.Detect(detect.Tsc, t.TempDir())
	require.NotNil(t, ti)
	require.False(t, ti.IsLocal)
	require.Equal(t, "4.5.2", ti.Version)

	e.AssertExpectations(t)
}

func TestDetectMissing(t *testing.T) {
	e := &exec.MockInterface{}
	e.On("Execute", "esbuild", "--version").Return([]byte(nil), errors.New("executable file not found")).Once()

	c := detect.New(e)

	require.Nil(t, c.Detect(detect.Esbuild, t.TempDir()))
	require.Nil(t, c.Detect(detect.Esbuild, t.TempDir()))
	require.Equal(t, 1, c.Probes())

	e.AssertExpectations(t)
}

func TestDetectUnparsable(t *testing.T) {
	e := &exec.MockInterface{}
	e.On("Execute", "esbuild", "--version").Return([]byte("garbage\n"), nil).Once()

	c := detect.New(e)

	require.Nil(t, c.Detect(detect.Esbuild, t.TempDir()))
}

func TestDetectCached(t *testing.T) {
	e := &exec.MockInterface{}
	e.On("Execute", "esbuild", "--version").Return([]byte("0.14.0\n"), nil).Twice()

	c := detect.New(e)
	dir := t.TempDir()

	first := c.Detect(detect.Esbuild, dir)
	second := c.Detect(detect.Esbuild, dir)
	require.Same(t, first, second)
	require.Equal(t, 1, c.Probes())

	c.Clear(detect.Esbuild)

	third := c.Detect(detect.Esbuild, dir)
	require.Equal(t, first, third)
	require.Equal(t, 2, c.Probes())

	e.AssertExpectations(t)
}

func TestDetectClearAll(t *testing.T) {
	e := &exec.MockInterface{}
	e.On("Execute", "esbuild", "--version").Return([]byte("0.14.0\n"), nil)
	e.On("Execute", "tsc", "--version").Return([]byte("Version 4.5.2\n"), nil)

	c := detect.New(e)
	dir := t.TempDir()

	c.Detect(detect.Esbuild, dir)
	c.Detect(detect.Tsc, dir)
	require.Equal(t, 2, c.Probes())

	c.ClearAll()

	c.Detect(detect.Esbuild, dir)
	c.Detect(detect.Tsc, dir)
	require.Equal(t, 4, c.Probes())
}

func TestDetectConcurrent(t *testing.T) {
	e := &exec.MockInterface{}
	e.On("Execute", "esbuild", "--version").Return([]byte("0.14.0\n"), nil)

	c := detect.New(e)
	dir := t.TempDir()

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ti := c.Detect(detect.Esbuild, dir)
			require.Equal(t, "0.14.0", ti.Version)
		}()
	}

	wg.Wait()

	require.Equal(t, 1, c.Probes())
}

func TestCompiled(t *testing.T) {
	c := detect.New(&exec.MockInterface{})

	require.False(t, c.Compiled("/project/tsconfig.json"))

	c.MarkCompiled("/project/tsconfig.json")
	require.True(t, c.Compiled("/project/tsconfig.json"))
	require.False(t, c.Compiled("/other/tsconfig.json"))

	c.ClearCompiled()
	require.False(t, c.Compiled("/project/tsconfig.json"))
}

func TestMajor(t *testing.T) {
	require.Equal(t, "0", detect.Major("0.14.2"))
	require.Equal(t, "1", detect.Major("1.0.0"))
	require.Equal(t, "4", detect.Major("v4.5.2"))
	require.Equal(t, "", detect.Major("garbage"))
}

func writeModule(t *testing.T, root, module, version string) {
	t.Helper()

	data := []byte(`{"name":"` + module + `","version":"` + version + `"}`)

	require.NoError(t, helpers.WriteFile(filepath.Join(root, "node_modules", module, "package.json"), data, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0755))
}
