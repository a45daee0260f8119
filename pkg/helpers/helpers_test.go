package helpers_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/options"
	"github.com/stretchr/testify/require"
)

func TestCoalesceString(t *testing.T) {
	require.Equal(t, "b", helpers.CoalesceString("", "b", "c"))
	require.Equal(t, "", helpers.CoalesceString())
	require.Equal(t, "", helpers.CoalesceString("", ""))
}

func TestDefault(t *testing.T) {
	require.True(t, helpers.DefaultBool(nil, true))
	require.False(t, helpers.DefaultBool(options.Bool(false), true))
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, helpers.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0644))
	require.NoError(t, helpers.WriteFile(filepath.Join(root, "lib", "deep", "tsconfig.json"), []byte("{}"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "deep", "er"), 0755))

	require.Equal(t, filepath.Join(root, "package.json"), helpers.FindUp("package.json", filepath.Join(root, "lib", "deep", "er"), ""))
	require.Equal(t, filepath.Join(root, "lib", "deep", "tsconfig.json"), helpers.FindUp("tsconfig.json", filepath.Join(root, "lib", "deep", "er"), root))
	require.Equal(t, "", helpers.FindUp("package.json", filepath.Join(root, "lib", "deep"), filepath.Join(root, "lib")))
	require.Equal(t, filepath.Join(root, "package.json"), helpers.FindUp("package.json", root, root))
}

func TestWithin(t *testing.T) {
	tests := []struct {
		root, path string
		within     bool
	}{
		{"/project", "/project", true},
		{"/project", "/project/lib/a.ts", true},
		{"/project", "/project/..a", true},
		{"/project", "/other", false},
		{"/project", "/project-two/a.ts", false},
		{"/project/lib", "/project", false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.within, helpers.Within(tt.root, tt.path), "%s in %s", tt.path, tt.root)
	}
}

func TestDirEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, err := helpers.DirEmpty(dir)
	require.NoError(t, err)
	require.True(t, empty)

	empty, err = helpers.DirEmpty(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, helpers.WriteFile(filepath.Join(dir, "index.js"), []byte("1"), 0644))

	empty, err = helpers.DirEmpty(dir)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestEnv(t *testing.T) {
	env := map[string]string{"B": "2", "A": "1", "C": "x=y"}

	require.Equal(t, []string{"A", "B", "C"}, helpers.SortedKeys(env))
	require.Equal(t, []string{"A=1", "B=2", "C=x=y"}, helpers.EnvList(env))
	require.Equal(t, []string{}, helpers.EnvList(nil))

	merged := helpers.MergeEnv(map[string]string{"A": "1", "B": "2"}, nil, map[string]string{"B": "3"})
	require.Equal(t, map[string]string{"A": "1", "B": "3"}, merged)
}

func TestSize(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, helpers.WriteFile(filepath.Join(dir, "index.js"), make([]byte, 1500), 0644))
	require.NoError(t, helpers.WriteFile(filepath.Join(dir, "lib", "a.js"), make([]byte, 500), 0644))

	size, err := helpers.DirSize(dir)
	require.NoError(t, err)
	require.Equal(t, int64(2000), size)
	require.Equal(t, "2.0 kB", helpers.Size(size))
	require.Equal(t, "0 B", helpers.Size(-1))

	_, err = helpers.DirSize(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestElapsed(t *testing.T) {
	now := time.Now()

	require.Equal(t, "Less than a second", helpers.Elapsed(now, now))
	require.Equal(t, "45 seconds", helpers.Elapsed(now, now.Add(45*time.Second)))
	require.Equal(t, "5 minutes", helpers.Elapsed(now, now.Add(5*time.Minute)))
	require.Equal(t, "", helpers.Elapsed(now, time.Time{}))
}
