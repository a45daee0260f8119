package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/convox/bundle/pkg/fingerprint"
	"github.com/convox/bundle/pkg/helpers"
	"github.com/pkg/errors"
)

// Asset is a bundled function ready to be packaged.
type Asset struct {
	Path     string
	Hash     string
	Strategy string
}

func (a *Asset) String() string {
	return fmt.Sprintf("%s (%s)", a.Path, a.Strategy)
}

// Hash is the hash of a custom hash string or of the directory contents.
func Hash(dir, custom string) (string, error) {
	if custom != "" {
		sum := sha256.Sum256([]byte(custom))
		return hex.EncodeToString(sum[:]), nil
	}

	return fingerprint.Fingerprint(dir, fingerprint.Options{})
}

// Stage moves the output of a bundling run to <staging>/asset.<hash>. An
// existing directory with the same hash is reused and the output discarded.
func Stage(output, staging, custom string) (*Asset, error) {
	empty, err := helpers.DirEmpty(output)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if empty {
		return nil, errors.Errorf("Bundling did not produce any output. Check that content is written to %s.", output)
	}

	hash, err := Hash(output, custom)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(staging, fmt.Sprintf("asset.%s", hash))

	if helpers.FileExists(dest) {
		if err := os.RemoveAll(output); err != nil {
			return nil, errors.WithStack(err)
		}

		return &Asset{Path: dest, Hash: hash}, nil
	}

	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := os.Rename(output, dest); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Asset{Path: dest, Hash: hash}, nil
}
