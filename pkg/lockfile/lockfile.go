package lockfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/convox/bundle/pkg/structs"
)

type Kind string

const (
	Npm  Kind = "npm"
	Yarn Kind = "yarn"
	Pnpm Kind = "pnpm"
)

const (
	NpmLockFile  = "package-lock.json"
	YarnLockFile = "yarn.lock"
	PnpmLockFile = "pnpm-lock.yaml"
)

// PackageManager describes how a dependency manager installs a lock file and
// runs locally installed binaries.
type PackageManager struct {
	Kind           Kind
	LockFile       string
	InstallCommand []string
	RunCommand     []string
}

var managers = []PackageManager{
	{Kind: Npm, LockFile: NpmLockFile, InstallCommand: []string{"npm", "ci"}, RunCommand: []string{"npx", "--no-install"}},
	{Kind: Yarn, LockFile: YarnLockFile, InstallCommand: []string{"yarn", "install", "--frozen-lockfile"}, RunCommand: []string{"yarn", "run"}},
	{Kind: Pnpm, LockFile: PnpmLockFile, InstallCommand: []string{"pnpm", "install", "--frozen-lockfile"}, RunCommand: []string{"pnpm", "exec"}},
}

// FromPath resolves the package manager from the lock file base name.
func FromPath(path string) (PackageManager, error) {
	base := filepath.Base(path)

	for _, m := range managers {
		if m.LockFile == base {
			return m, nil
		}
	}

	return PackageManager{}, structs.ConfigErrorf("deps_lock_file_path", "unsupported lock file: %s", base)
}

// RunBin returns the tokens that run a locally installed binary, or the
// bare binary when the installation is global.
func (m PackageManager) RunBin(bin string, local bool) []string {
	if !local {
		return []string{bin}
	}

	return append(append([]string{}, m.RunCommand...), bin)
}

func (m PackageManager) Install() string {
	return strings.Join(m.InstallCommand, " ")
}

// Find walks upward from dir looking for a directory containing a lock file.
// Several lock files in the same directory are ambiguous.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		found := []string{}

		for _, m := range managers {
			candidate := filepath.Join(dir, m.LockFile)

			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				found = append(found, candidate)
			}
		}

		switch len(found) {
		case 0:
		case 1:
			return found[0], nil
		default:
			return "", structs.ConfigErrorf("deps_lock_file_path", "multiple dependency lock files found in %s, please specify the desired one with depsLockFilePath", dir)
		}

		parent := filepath.Dir(dir)

		if parent == dir {
			return "", structs.ConfigErrorf("deps_lock_file_path", "cannot find a dependency lock file (%s), please specify one with depsLockFilePath", strings.Join(LockFiles(), ", "))
		}

		dir = parent
	}
}

func LockFiles() []string {
	files := make([]string, len(managers))

	for i, m := range managers {
		files[i] = m.LockFile
	}

	return files
}
