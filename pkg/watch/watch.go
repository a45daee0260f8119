package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/convox/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const DefaultDebounce = 300 * time.Millisecond

var log = logger.New("ns=watch")

type Change struct {
	Operation string
	Base      string
	Path      string
}

func Partition(changes []Change) (adds []Change, removes []Change) {
	for _, c := range changes {
		switch c.Operation {
		case "add":
			adds = append(adds, c)
		case "remove":
			removes = append(removes, c)
		}
	}

	return
}

type Options struct {
	Include  []string
	Exclude  []string
	Debounce time.Duration
}

// Watch calls fn with each debounced batch of source changes under dir until
// ctx is done or fn returns an error.
func Watch(ctx context.Context, dir string, opts Options, fn func([]Change) error) error {
	m, err := NewMatcher(opts.Include, opts.Exclude)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.WithStack(err)
	}

	sym, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return errors.WithStack(err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	if err := addRecursive(w, sym, sym, m); err != nil {
		return err
	}

	debounce := opts.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := map[string]Change{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			c, ok := change(w, sym, m, event)
			if !ok {
				continue
			}

			pending[c.Path] = c

			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			log.Error(err)
		case <-timer.C:
			batch := make([]Change, 0, len(pending))

			for _, c := range pending {
				batch = append(batch, c)
			}

			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

			pending = map[string]Change{}

			if err := fn(batch); err != nil {
				return err
			}
		}
	}
}

func change(w *fsnotify.Watcher, base string, m *Matcher, event fsnotify.Event) (Change, bool) {
	rel, err := filepath.Rel(base, event.Name)
	if err != nil {
		return Change{}, false
	}

	rel = filepath.ToSlash(rel)

	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := addRecursive(w, base, event.Name, m); err != nil {
				log.Error(err)
			}
			return Change{}, false
		}
	}

	if !m.Match(rel) || compiled(event.Name) {
		return Change{}, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Operation: "remove", Base: base, Path: rel}, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return Change{Operation: "add", Base: base, Path: rel}, true
	}

	return Change{}, false
}

// compiled reports whether path is tsc output sitting next to its typescript
// source. Pre-compilation rewrites these on every run.
func compiled(path string) bool {
	var sources []string

	switch {
	case strings.HasSuffix(path, ".d.ts"):
		sources = []string{strings.TrimSuffix(path, ".d.ts") + ".ts", strings.TrimSuffix(path, ".d.ts") + ".tsx"}
	case strings.HasSuffix(path, ".js"):
		sources = []string{strings.TrimSuffix(path, ".js") + ".ts"}
	case strings.HasSuffix(path, ".jsx"):
		sources = []string{strings.TrimSuffix(path, ".jsx") + ".tsx"}
	}

	for _, src := range sources {
		if fi, err := os.Stat(src); err == nil && fi.Mode().IsRegular() {
			return true
		}
	}

	return false
}

func addRecursive(w *fsnotify.Watcher, base, dir string, m *Matcher) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		if rel != "." && m.Skip(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}

		if err := w.Add(path); err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
}
