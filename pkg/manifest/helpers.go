package manifest

import (
	"path/filepath"
	"regexp"

	homedir "github.com/mitchellh/go-homedir"
)

var regexpInterpolation = regexp.MustCompile(`\$\{([^}]*?)\}`)

func interpolate(data []byte, env map[string]string) []byte {
	return regexpInterpolation.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(env[string(m)[2:len(m)-1]])
	})
}

// expandPath resolves ~ and makes path absolute relative to base.
func expandPath(base, path string) (string, error) {
	if path == "" {
		return "", nil
	}

	p, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}

	return filepath.Clean(p), nil
}
