package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/convox/bundle/pkg/lockfile"
	"github.com/convox/bundle/pkg/structs"
	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		path    string
		kind    lockfile.Kind
		install string
		run     []string
	}{
		{"/project/package-lock.json", lockfile.Npm, "npm ci", []string{"npx", "--no-install", "esbuild"}},
		{"/project/yarn.lock", lockfile.Yarn, "yarn install --frozen-lockfile", []string{"yarn", "run", "esbuild"}},
		{"/project/pnpm-lock.yaml", lockfile.Pnpm, "pnpm install --frozen-lockfile", []string{"pnpm", "exec", "esbuild"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			m, err := lockfile.FromPath(tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.kind, m.Kind)
			require.Equal(t, tt.install, m.Install())
			require.Equal(t, tt.run, m.RunBin("esbuild", true))
			require.Equal(t, []string{"esbuild"}, m.RunBin("esbuild", false))
		})
	}
}

func TestFromPathUnknown(t *testing.T) {
	_, err := lockfile.FromPath("/project/bun.lockb")
	require.Error(t, err)
	require.True(t, structs.IsConfigError(err))
	require.EqualError(t, err, "unsupported lock file: bun.lockb")
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "lib", "nested")
	require.NoError(t, os.MkdirAll(lib, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "yarn.lock"), nil, 0644))

	path, err := lockfile.Find(lib)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "yarn.lock"), path)
}

func TestFindNearest(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	require.NoError(t, os.MkdirAll(lib, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "yarn.lock"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "package-lock.json"), nil, 0644))

	path, err := lockfile.Find(lib)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(lib, "package-lock.json"), path)
}

func TestFindMultiple(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "yarn.lock"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "package-lock.json"), nil, 0644))

	_, err := lockfile.Find(root)
	require.Error(t, err)
	require.True(t, structs.IsConfigError(err))
	require.Contains(t, err.Error(), "multiple dependency lock files")
}
