package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/convox/bundle/pkg/helpers"
	"github.com/moby/patternmatcher"
	"github.com/pkg/errors"
)

const bufferSize = 8 * 1024

const (
	ctrlSOH = "\x01"
	ctrlSTX = "\x02"
	ctrlETX = "\x03"
)

// Follow controls how symbolic links are treated while hashing.
type Follow string

const (
	FollowAlways        Follow = "always"
	FollowNever         Follow = "never"
	FollowExternal      Follow = "external"
	FollowBlockExternal Follow = "block-external"
)

type Options struct {
	// Extra is mixed into the hash, e.g. to invalidate on option changes.
	Extra   string
	Follow  Follow
	Exclude []string
}

// Fingerprint hashes a file or directory tree. Only contents and paths
// relative to root take part, so a single file hashes the same under any
// name.
func Fingerprint(root string, opts Options) (string, error) {
	follow := opts.Follow
	if follow == "" {
		follow = FollowExternal
	}

	fi, err := os.Stat(root)
	if err != nil {
		return "", errors.WithStack(err)
	}

	h := sha256.New()

	field(h, "options.extra", opts.Extra)
	field(h, "options.follow", string(follow))

	var pm *patternmatcher.PatternMatcher

	if len(opts.Exclude) > 0 {
		data, err := marshal(opts.Exclude)
		if err != nil {
			return "", err
		}

		field(h, "options.exclude", data)

		pm, err = patternmatcher.New(opts.Exclude)
		if err != nil {
			return "", errors.WithStack(err)
		}
	}

	base := root
	if !fi.IsDir() {
		base = filepath.Dir(root)
	}

	if real, err := filepath.EvalSymlinks(base); err == nil {
		base = real
	}

	w := &walker{hash: h, root: root, base: base, follow: follow, exclude: pm, active: map[string]bool{}}

	if err := w.walk(root, root, true); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

type walker struct {
	hash    hash.Hash
	root    string
	base    string
	follow  Follow
	exclude *patternmatcher.PatternMatcher

	// resolved directories on the current path, to stop at link cycles
	active map[string]bool
}

func (w *walker) walk(symbolic, real string, top bool) error {
	rel, err := filepath.Rel(w.root, symbolic)
	if err != nil {
		return errors.WithStack(err)
	}

	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}

	if !top && w.exclude != nil {
		excluded, err := w.exclude.MatchesOrParentMatches(rel)
		if err != nil {
			return errors.WithStack(err)
		}
		if excluded {
			return nil
		}
	}

	fi, err := os.Lstat(real)
	if err != nil {
		return errors.WithStack(err)
	}

	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(real)
		if err != nil {
			return errors.WithStack(err)
		}

		resolved := target
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(real), target)
		}

		if ShouldFollow(w.follow, w.base, resolved) && !w.cycle(resolved) {
			return w.walk(symbolic, resolved, false)
		}

		field(w.hash, "link:"+rel, target)
	case fi.Mode().IsRegular():
		sum, err := File(real)
		if err != nil {
			return err
		}

		field(w.hash, "file:"+rel, sum)
	case fi.IsDir():
		if r, err := filepath.EvalSymlinks(real); err == nil {
			w.active[r] = true
			defer delete(w.active, r)
		}

		entries, err := os.ReadDir(real)
		if err != nil {
			return errors.WithStack(err)
		}

		names := make([]string, 0, len(entries))

		for _, e := range entries {
			names = append(names, e.Name())
		}

		sort.Strings(names)

		for _, n := range names {
			if err := w.walk(filepath.Join(symbolic, n), filepath.Join(real, n), false); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("unable to hash %s: it is neither a file nor a directory", symbolic)
	}

	return nil
}

// cycle reports whether target resolves to a directory already being walked.
func (w *walker) cycle(target string) bool {
	r, err := filepath.EvalSymlinks(target)
	if err != nil {
		return false
	}

	return w.active[r]
}

// ShouldFollow reports whether a link resolving to target under root is
// followed in the given mode. Dangling links are never followed.
func ShouldFollow(mode Follow, root, target string) bool {
	real, err := filepath.EvalSymlinks(target)
	if err != nil {
		return false
	}

	internal := helpers.Within(root, real)

	switch mode {
	case FollowAlways:
		return true
	case FollowExternal:
		return !internal
	case FollowBlockExternal:
		return internal
	default:
		return false
	}
}

// File is the "<size>:<sha256>" fingerprint of a file's content. Text files
// have CRLF line endings normalized to LF first.
func File(path string) (string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer fd.Close()

	h := sha256.New()
	buf := make([]byte, bufferSize)

	size := 0
	first := true
	binary := false

	var pending []byte

	for {
		n, err := fd.Read(buf)

		if n > 0 {
			chunk := buf[:n]

			if first {
				binary = bytes.IndexByte(chunk, 0) != -1
				first = false
			}

			if !binary {
				if chunk[len(chunk)-1] == '\r' {
					pending = append(pending, chunk...)
					continue
				}

				data := append(pending, chunk...)
				chunk = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
				pending = nil
			}

			size += len(chunk)
			h.Write(chunk)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.WithStack(err)
		}
	}

	if len(pending) > 0 {
		normalized := bytes.ReplaceAll(pending, []byte("\r\n"), []byte("\n"))
		size += len(normalized)
		h.Write(normalized)
	}

	return fmt.Sprintf("%d:%s", size, hex.EncodeToString(h.Sum(nil))), nil
}

func field(h hash.Hash, header, value string) {
	h.Write([]byte(ctrlSOH + header + ctrlSTX + value + ctrlETX))
}

func marshal(v interface{}) (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return "", errors.WithStack(err)
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}
