package helpers

import (
	"io/fs"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

func Size(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}

	return humanize.Bytes(uint64(bytes))
}

// DirSize is the total size of the regular files below dir.
func DirSize(dir string) (int64, error) {
	var size int64

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}

		return nil
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return size, nil
}
