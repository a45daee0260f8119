package helpers

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

func FileExists(filename string) bool {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return false
	}

	return true
}

func WriteFile(filename string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, mode); err != nil {
		return err
	}

	return nil
}

// FindUp looks for name in dir and each of its parents, stopping after stop
// when stop is not empty. It returns the first match or an empty string.
func FindUp(name, dir, stop string) string {
	dir = filepath.Clean(dir)
	stop = filepath.Clean(stop)

	for {
		candidate := filepath.Join(dir, name)

		if FileExists(candidate) {
			return candidate
		}

		if stop != "." && dir == stop {
			return ""
		}

		parent := filepath.Dir(dir)

		if parent == dir {
			return ""
		}

		dir = parent
	}
}

// Within reports whether path is root or lives below it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// DirEmpty reports whether dir has no entries. A missing directory is empty.
func DirEmpty(dir string) (bool, error) {
	fd, err := os.Open(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer fd.Close()

	if _, err := fd.Readdirnames(1); err == io.EOF {
		return true, nil
	} else if err != nil {
		return false, err
	}

	return false, nil
}
